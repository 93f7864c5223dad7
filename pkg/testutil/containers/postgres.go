//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"vaxtrack/internal/platform/postgres"
)

// schema mirrors the store-level schema documentation. Integration tests run
// against exactly what the stores expect.
const schema = `
CREATE TABLE patients (
    id         UUID PRIMARY KEY,
    full_name  TEXT NOT NULL,
    birth_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    deleted_at TIMESTAMPTZ
);
CREATE TABLE vaccines (
    id         UUID PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    active     BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE operators (
    id         UUID PRIMARY KEY,
    full_name  TEXT NOT NULL,
    active     BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE stock_batches (
    vaccine_id   UUID NOT NULL REFERENCES vaccines (id),
    batch_number TEXT NOT NULL,
    quantity     INTEGER NOT NULL CHECK (quantity >= 0),
    expires_on   TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL,
    received_by  UUID NOT NULL REFERENCES operators (id),
    received_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (vaccine_id, batch_number)
);
CREATE INDEX stock_batches_alloc_idx
    ON stock_batches (vaccine_id, expires_on, batch_number)
    WHERE status = 'AVAILABLE';
CREATE TABLE administration_records (
    id              UUID PRIMARY KEY,
    patient_id      UUID NOT NULL REFERENCES patients (id),
    vaccine_id      UUID NOT NULL REFERENCES vaccines (id),
    dose_number     INTEGER NOT NULL CHECK (dose_number > 0),
    batch_number    TEXT NOT NULL,
    operator_id     UUID NOT NULL REFERENCES operators (id),
    administered_at TIMESTAMPTZ NOT NULL,
    site            TEXT NOT NULL DEFAULT '',
    notes           TEXT NOT NULL DEFAULT '',
    next_dose_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (patient_id, vaccine_id, dose_number)
);
CREATE TABLE scheduled_visits (
    id           UUID PRIMARY KEY,
    patient_id   UUID NOT NULL REFERENCES patients (id),
    scheduled_at TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);
CREATE TABLE visit_vaccines (
    visit_id   UUID NOT NULL REFERENCES scheduled_visits (id),
    vaccine_id UUID NOT NULL REFERENCES vaccines (id),
    PRIMARY KEY (visit_id, vaccine_id)
);
CREATE TABLE dose_schedules (
    vaccine_id          UUID NOT NULL REFERENCES vaccines (id),
    dose_number         INTEGER NOT NULL CHECK (dose_number > 0),
    recommended_age_mon INTEGER NOT NULL,
    mandatory           BOOLEAN NOT NULL,
    PRIMARY KEY (vaccine_id, dose_number)
);
CREATE TABLE audit_outbox (
    seq        BIGSERIAL PRIMARY KEY,
    id         UUID NOT NULL,
    category   TEXT NOT NULL,
    action     TEXT NOT NULL,
    payload    JSONB NOT NULL,
    chain_hash BYTEA NOT NULL,
    published  BOOLEAN NOT NULL DEFAULT FALSE
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// vaxtrack schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vaxtrack_test"),
		tcpostgres.WithUsername("vaxtrack"),
		tcpostgres.WithPassword("vaxtrack"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := postgres.Open(dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables clears the named tables between tests while keeping the
// schema. With no arguments it clears everything.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = []string{
			"audit_outbox", "dose_schedules", "visit_vaccines",
			"scheduled_visits", "administration_records", "stock_batches",
			"operators", "vaccines", "patients",
		}
	}
	query := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
	_, err := p.DB.ExecContext(ctx, query)
	return err
}
