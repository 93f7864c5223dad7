package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"vaxtrack/internal/compliance/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

// PostgresStore reads and seeds dose schedules.
//
// Expected schema:
//
//	CREATE TABLE dose_schedules (
//	    vaccine_id          UUID NOT NULL REFERENCES vaccines (id),
//	    dose_number         INTEGER NOT NULL CHECK (dose_number > 0),
//	    recommended_age_mon INTEGER NOT NULL,
//	    mandatory           BOOLEAN NOT NULL,
//	    PRIMARY KEY (vaccine_id, dose_number)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, entry models.DoseSchedule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dose_schedules (vaccine_id, dose_number, recommended_age_mon, mandatory)
		VALUES ($1, $2, $3, $4)
	`, entry.VaccineID.String(), entry.DoseNumber, entry.RecommendedAgeMonths, entry.Mandatory)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("save dose schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, vaccineID id.VaccineID, doseNumber int) (models.DoseSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT vaccine_id, dose_number, recommended_age_mon, mandatory
		FROM dose_schedules WHERE vaccine_id = $1 AND dose_number = $2
	`, vaccineID.String(), doseNumber)

	var entry models.DoseSchedule
	var rawVaccine string
	err := row.Scan(&rawVaccine, &entry.DoseNumber, &entry.RecommendedAgeMonths, &entry.Mandatory)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DoseSchedule{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.DoseSchedule{}, fmt.Errorf("get dose schedule: %w", err)
	}
	if entry.VaccineID, err = id.ParseVaccineID(rawVaccine); err != nil {
		return models.DoseSchedule{}, fmt.Errorf("get dose schedule: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]models.DoseSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vaccine_id, dose_number, recommended_age_mon, mandatory
		FROM dose_schedules WHERE vaccine_id = $1
		ORDER BY dose_number
	`, vaccineID.String())
	if err != nil {
		return nil, fmt.Errorf("list dose schedules: %w", err)
	}
	defer rows.Close()

	var out []models.DoseSchedule
	for rows.Next() {
		var entry models.DoseSchedule
		var rawVaccine string
		if err := rows.Scan(&rawVaccine, &entry.DoseNumber, &entry.RecommendedAgeMonths, &entry.Mandatory); err != nil {
			return nil, fmt.Errorf("list dose schedules: %w", err)
		}
		if entry.VaccineID, err = id.ParseVaccineID(rawVaccine); err != nil {
			return nil, fmt.Errorf("list dose schedules: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
