package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"vaxtrack/internal/administration/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
	txcontext "vaxtrack/pkg/platform/tx"
)

// PostgresStore persists administration records.
//
// Expected schema:
//
//	CREATE TABLE administration_records (
//	    id              UUID PRIMARY KEY,
//	    patient_id      UUID NOT NULL REFERENCES patients (id),
//	    vaccine_id      UUID NOT NULL REFERENCES vaccines (id),
//	    dose_number     INTEGER NOT NULL CHECK (dose_number > 0),
//	    batch_number    TEXT NOT NULL,
//	    operator_id     UUID NOT NULL REFERENCES operators (id),
//	    administered_at TIMESTAMPTZ NOT NULL,
//	    site            TEXT NOT NULL DEFAULT '',
//	    notes           TEXT NOT NULL DEFAULT '',
//	    next_dose_at    TIMESTAMPTZ,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    UNIQUE (patient_id, vaccine_id, dose_number)
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

const recordColumns = `
	id, patient_id, vaccine_id, dose_number, batch_number, operator_id,
	administered_at, site, notes, next_dose_at, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.AdministrationRecord, error) {
	var record models.AdministrationRecord
	var rawID, rawPatient, rawVaccine, rawBatch, rawOperator string
	err := row.Scan(
		&rawID, &rawPatient, &rawVaccine, &record.DoseNumber, &rawBatch, &rawOperator,
		&record.AdministeredAt, &record.Site, &record.Notes, &record.NextDoseAt, &record.CreatedAt,
	)
	if err != nil {
		return models.AdministrationRecord{}, err
	}
	if record.ID, err = id.ParseRecordID(rawID); err != nil {
		return models.AdministrationRecord{}, err
	}
	if record.PatientID, err = id.ParsePatientID(rawPatient); err != nil {
		return models.AdministrationRecord{}, err
	}
	if record.VaccineID, err = id.ParseVaccineID(rawVaccine); err != nil {
		return models.AdministrationRecord{}, err
	}
	if record.OperatorID, err = id.ParseOperatorID(rawOperator); err != nil {
		return models.AdministrationRecord{}, err
	}
	record.BatchNumber = id.BatchNumber(rawBatch)
	return record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record models.AdministrationRecord) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO administration_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID.String(), record.PatientID.String(), record.VaccineID.String(),
		record.DoseNumber, string(record.BatchNumber), record.OperatorID.String(),
		record.AdministeredAt, record.Site, record.Notes, record.NextDoseAt, record.CreatedAt)
	if isDuplicate(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert administration record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, recordID id.RecordID) (models.AdministrationRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM administration_records WHERE id = $1
	`, recordID.String())

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AdministrationRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AdministrationRecord{}, fmt.Errorf("get administration record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByPatientVaccine(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+recordColumns+` FROM administration_records
		WHERE patient_id = $1 AND vaccine_id = $2
		ORDER BY dose_number
	`, patientID.String(), vaccineID.String())
	if err != nil {
		return nil, fmt.Errorf("list administration records: %w", err)
	}
	defer rows.Close()

	var out []models.AdministrationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list administration records: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list administration records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountDistinctPatients(ctx context.Context, vaccineID id.VaccineID, from, to time.Time) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT patient_id) FROM administration_records
		WHERE vaccine_id = $1 AND administered_at BETWEEN $2 AND $3
	`, vaccineID.String(), from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct patients: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Correct(ctx context.Context, recordID id.RecordID, site, notes string) (models.AdministrationRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		UPDATE administration_records SET site = $2, notes = $3
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, recordID.String(), site, notes)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AdministrationRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AdministrationRecord{}, fmt.Errorf("correct administration record: %w", err)
	}
	return record, nil
}
