package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"vaxtrack/internal/scheduling/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
	txcontext "vaxtrack/pkg/platform/tx"
)

// PostgresStore persists scheduled visits and their anticipated vaccines.
//
// Expected schema:
//
//	CREATE TABLE scheduled_visits (
//	    id           UUID PRIMARY KEY,
//	    patient_id   UUID NOT NULL REFERENCES patients (id),
//	    scheduled_at TIMESTAMPTZ NOT NULL,
//	    status       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    completed_at TIMESTAMPTZ
//	);
//	CREATE TABLE visit_vaccines (
//	    visit_id   UUID NOT NULL REFERENCES scheduled_visits (id),
//	    vaccine_id UUID NOT NULL REFERENCES vaccines (id),
//	    PRIMARY KEY (visit_id, vaccine_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Save(ctx context.Context, visit models.ScheduledVisit) error {
	conn := s.conn(ctx)
	_, err := conn.ExecContext(ctx, `
		INSERT INTO scheduled_visits (id, patient_id, scheduled_at, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, visit.ID.String(), visit.PatientID.String(), visit.ScheduledAt, string(visit.Status), visit.CreatedAt, visit.CompletedAt)
	if isDuplicate(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("save visit: %w", err)
	}
	for _, vaccineID := range visit.Vaccines {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO visit_vaccines (visit_id, vaccine_id) VALUES ($1, $2)
		`, visit.ID.String(), vaccineID.String()); err != nil {
			return fmt.Errorf("save visit vaccine: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, visitID id.VisitID) (models.ScheduledVisit, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, patient_id, scheduled_at, status, created_at, completed_at
		FROM scheduled_visits WHERE id = $1
	`, visitID.String())

	visit, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduledVisit{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ScheduledVisit{}, fmt.Errorf("get visit: %w", err)
	}
	if visit.Vaccines, err = s.vaccinesFor(ctx, visitID); err != nil {
		return models.ScheduledVisit{}, err
	}
	return visit, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID id.PatientID) ([]models.ScheduledVisit, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, patient_id, scheduled_at, status, created_at, completed_at
		FROM scheduled_visits WHERE patient_id = $1
		ORDER BY scheduled_at
	`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduledVisit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("list visits: %w", err)
		}
		out = append(out, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	for i := range out {
		if out[i].Vaccines, err = s.vaccinesFor(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, visitID id.VisitID, to models.VisitStatus, at time.Time) error {
	var completedAt *time.Time
	if to == models.VisitCompleted {
		completedAt = &at
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE scheduled_visits SET status = $2, completed_at = COALESCE($3, completed_at)
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
	`, visitID.String(), string(to), completedAt)
	if err != nil {
		return fmt.Errorf("update visit status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, visitID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

// CompleteMatching closes out the earliest linkable visit for the patient
// that anticipates the vaccine. The subquery picks at most one row, so a
// single administration never completes more than one visit.
func (s *PostgresStore) CompleteMatching(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID, now time.Time) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE scheduled_visits SET status = 'COMPLETED', completed_at = $3
		WHERE id = (
			SELECT v.id FROM scheduled_visits v
			JOIN visit_vaccines vv ON vv.visit_id = v.id
			WHERE v.patient_id = $1 AND vv.vaccine_id = $2
			  AND v.status IN ('SCHEDULED', 'CONFIRMED')
			ORDER BY v.scheduled_at
			LIMIT 1
		)
	`, patientID.String(), vaccineID.String(), now)
	if err != nil {
		return false, fmt.Errorf("complete matching visit: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (models.ScheduledVisit, error) {
	var visit models.ScheduledVisit
	var rawID, rawPatient, rawStatus string
	err := row.Scan(&rawID, &rawPatient, &visit.ScheduledAt, &rawStatus, &visit.CreatedAt, &visit.CompletedAt)
	if err != nil {
		return models.ScheduledVisit{}, err
	}
	if visit.ID, err = id.ParseVisitID(rawID); err != nil {
		return models.ScheduledVisit{}, err
	}
	if visit.PatientID, err = id.ParsePatientID(rawPatient); err != nil {
		return models.ScheduledVisit{}, err
	}
	visit.Status = models.VisitStatus(rawStatus)
	return visit, nil
}

func (s *PostgresStore) vaccinesFor(ctx context.Context, visitID id.VisitID) ([]id.VaccineID, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT vaccine_id FROM visit_vaccines WHERE visit_id = $1
	`, visitID.String())
	if err != nil {
		return nil, fmt.Errorf("list visit vaccines: %w", err)
	}
	defer rows.Close()

	var out []id.VaccineID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("list visit vaccines: %w", err)
		}
		vaccineID, err := id.ParseVaccineID(raw)
		if err != nil {
			return nil, fmt.Errorf("list visit vaccines: %w", err)
		}
		out = append(out, vaccineID)
	}
	return out, rows.Err()
}
