package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"vaxtrack/internal/directory/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
	txcontext "vaxtrack/pkg/platform/tx"
)

// PostgresStore persists directory reference data.
//
// Expected schema:
//
//	CREATE TABLE patients (
//	    id         UUID PRIMARY KEY,
//	    full_name  TEXT NOT NULL,
//	    birth_date DATE NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    deleted_at TIMESTAMPTZ
//	);
//	CREATE TABLE vaccines (
//	    id         UUID PRIMARY KEY,
//	    code       TEXT NOT NULL UNIQUE,
//	    name       TEXT NOT NULL,
//	    active     BOOLEAN NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE operators (
//	    id         UUID PRIMARY KEY,
//	    full_name  TEXT NOT NULL,
//	    active     BOOLEAN NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// uniqueViolation is the Postgres error code for broken unique constraints.
const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) SavePatient(ctx context.Context, patient models.Patient) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO patients (id, full_name, birth_date, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, patient.ID.String(), patient.FullName, patient.BirthDate, patient.CreatedAt, patient.DeletedAt)
	if isDuplicate(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, patientID id.PatientID) (models.Patient, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, full_name, birth_date, created_at, deleted_at
		FROM patients WHERE id = $1
	`, patientID.String())

	var patient models.Patient
	var rawID string
	if err := row.Scan(&rawID, &patient.FullName, &patient.BirthDate, &patient.CreatedAt, &patient.DeletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Patient{}, sentinel.ErrNotFound
		}
		return models.Patient{}, fmt.Errorf("get patient: %w", err)
	}
	parsed, err := id.ParsePatientID(rawID)
	if err != nil {
		return models.Patient{}, fmt.Errorf("get patient: %w", err)
	}
	patient.ID = parsed
	return patient, nil
}

func (s *PostgresStore) SoftDeletePatient(ctx context.Context, patientID id.PatientID, deletedAt time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE patients SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, patientID.String(), deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountActivePatients(ctx context.Context) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM patients WHERE deleted_at IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active patients: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SaveVaccine(ctx context.Context, vaccine models.Vaccine) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO vaccines (id, code, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, vaccine.ID.String(), vaccine.Code, vaccine.Name, vaccine.Active, vaccine.CreatedAt)
	if isDuplicate(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("save vaccine: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVaccine(ctx context.Context, vaccineID id.VaccineID) (models.Vaccine, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, code, name, active, created_at
		FROM vaccines WHERE id = $1
	`, vaccineID.String())

	var vaccine models.Vaccine
	var rawID string
	if err := row.Scan(&rawID, &vaccine.Code, &vaccine.Name, &vaccine.Active, &vaccine.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Vaccine{}, sentinel.ErrNotFound
		}
		return models.Vaccine{}, fmt.Errorf("get vaccine: %w", err)
	}
	parsed, err := id.ParseVaccineID(rawID)
	if err != nil {
		return models.Vaccine{}, fmt.Errorf("get vaccine: %w", err)
	}
	vaccine.ID = parsed
	return vaccine, nil
}

func (s *PostgresStore) SetVaccineActive(ctx context.Context, vaccineID id.VaccineID, active bool) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE vaccines SET active = $2 WHERE id = $1
	`, vaccineID.String(), active)
	if err != nil {
		return fmt.Errorf("set vaccine active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveOperator(ctx context.Context, operator models.Operator) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO operators (id, full_name, active, created_at)
		VALUES ($1, $2, $3, $4)
	`, operator.ID.String(), operator.FullName, operator.Active, operator.CreatedAt)
	if isDuplicate(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("save operator: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOperator(ctx context.Context, operatorID id.OperatorID) (models.Operator, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, full_name, active, created_at
		FROM operators WHERE id = $1
	`, operatorID.String())

	var operator models.Operator
	var rawID string
	if err := row.Scan(&rawID, &operator.FullName, &operator.Active, &operator.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operator{}, sentinel.ErrNotFound
		}
		return models.Operator{}, fmt.Errorf("get operator: %w", err)
	}
	parsed, err := id.ParseOperatorID(rawID)
	if err != nil {
		return models.Operator{}, fmt.Errorf("get operator: %w", err)
	}
	operator.ID = parsed
	return operator, nil
}
