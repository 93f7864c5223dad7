// Package postgres implements audit.Store using the transactional outbox
// pattern. Events are written to the outbox table inside the caller's
// transaction when one is carried in the context, so an aborted workflow
// leaves no audit rows behind; the kafka relay publishes committed rows.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	audit "vaxtrack/pkg/platform/audit"
	txcontext "vaxtrack/pkg/platform/tx"
)

// Store persists audit events to the audit_outbox table.
//
// Expected schema:
//
//	CREATE TABLE audit_outbox (
//	    seq        BIGSERIAL PRIMARY KEY,
//	    id         UUID NOT NULL UNIQUE,
//	    category   TEXT NOT NULL,
//	    action     TEXT NOT NULL,
//	    payload    JSONB NOT NULL,
//	    chain_hash BYTEA NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    published  BOOLEAN NOT NULL DEFAULT FALSE
//	);
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// chainLockKey is the advisory lock serializing writers of the hash chain
// head. One key for the whole table: the chain is a single linked list.
const chainLockKey = int64(0x76617861756469)

// Append writes an audit event to the outbox, extending the hash chain.
// Head-read and insert run inside one transaction holding an advisory lock,
// so concurrent appends cannot both chain off the same head and fork the
// chain. A transaction already carried in the context is joined instead.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()

	payloadBytes, err := audit.Encode(eventID, event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	if tx, ok := txcontext.From(ctx); ok {
		return appendChained(ctx, tx, eventID, string(category), event.Action, payloadBytes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := appendChained(ctx, tx, eventID, string(category), event.Action, payloadBytes); err != nil {
		return err
	}
	return tx.Commit()
}

func appendChained(ctx context.Context, exec dbExecutor, eventID uuid.UUID, category, action string, payloadBytes []byte) error {
	// Released automatically at transaction end.
	if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return fmt.Errorf("lock audit chain head: %w", err)
	}

	var prev []byte
	err := exec.QueryRowContext(ctx, `
		SELECT chain_hash FROM audit_outbox ORDER BY seq DESC LIMIT 1
	`).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read audit chain head: %w", err)
	}

	head := blake2b.Sum256(append(prev, payloadBytes...))

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, category, action, payload, chain_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, eventID, category, action, payloadBytes, head[:])
	if err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}

// Unpublished returns up to limit committed rows the relay has not sent yet.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, category, action, payload
		FROM audit_outbox
		WHERE NOT published
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit rows: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.Seq, &row.ID, &row.Category, &row.Action, &row.Payload); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished flags rows as relayed.
func (s *Store) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	for _, seq := range seqs {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE audit_outbox SET published = TRUE WHERE seq = $1
		`, seq); err != nil {
			return fmt.Errorf("mark audit row published: %w", err)
		}
	}
	return nil
}

// OutboxRow is one relay unit.
type OutboxRow struct {
	Seq      int64
	ID       uuid.UUID
	Category string
	Action   string
	Payload  []byte
}
