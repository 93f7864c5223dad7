package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"vaxtrack/internal/inventory/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
	txcontext "vaxtrack/pkg/platform/tx"
)

// PostgresStore persists the stock ledger.
//
// Expected schema:
//
//	CREATE TABLE stock_batches (
//	    vaccine_id   UUID NOT NULL,
//	    batch_number TEXT NOT NULL,
//	    quantity     INTEGER NOT NULL CHECK (quantity >= 0),
//	    expires_on   TIMESTAMPTZ NOT NULL,
//	    status       TEXT NOT NULL,
//	    received_by  UUID NOT NULL,
//	    received_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (vaccine_id, batch_number)
//	);
//	CREATE INDEX stock_batches_alloc_idx
//	    ON stock_batches (vaccine_id, expires_on, batch_number)
//	    WHERE status = 'AVAILABLE';
//
// Concurrency: SelectEligible takes a row lock (FOR UPDATE) when called
// inside a transaction, which serializes the select-then-decrement pair per
// batch row. The decrement additionally keeps the quantity guard in its
// WHERE clause, so even without the lock the batch can never go negative.
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

func (s *PostgresStore) Insert(ctx context.Context, batch models.StockBatch) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO stock_batches (vaccine_id, batch_number, quantity, expires_on, status, received_by, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		batch.VaccineID.String(),
		batch.BatchNumber.String(),
		batch.QuantityOnHand,
		batch.ExpirationDate,
		string(batch.Status),
		batch.ReceivedBy.String(),
		batch.ReceivedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert stock batch: %w", err)
	}
	return nil
}

const batchColumns = `vaccine_id, batch_number, quantity, expires_on, status, received_by, received_at`

func scanBatch(scan func(dest ...any) error) (models.StockBatch, error) {
	var batch models.StockBatch
	var rawVaccine, rawBatch, rawStatus, rawOperator string
	err := scan(&rawVaccine, &rawBatch, &batch.QuantityOnHand, &batch.ExpirationDate, &rawStatus, &rawOperator, &batch.ReceivedAt)
	if err != nil {
		return models.StockBatch{}, err
	}

	vaccineID, err := id.ParseVaccineID(rawVaccine)
	if err != nil {
		return models.StockBatch{}, err
	}
	operatorID, err := id.ParseOperatorID(rawOperator)
	if err != nil {
		return models.StockBatch{}, err
	}
	batch.VaccineID = vaccineID
	batch.BatchNumber = id.BatchNumber(rawBatch)
	batch.Status = models.BatchStatus(rawStatus)
	batch.ReceivedBy = operatorID
	return batch, nil
}

func (s *PostgresStore) Get(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber) (models.StockBatch, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE vaccine_id = $1 AND batch_number = $2
	`, vaccineID.String(), batchNumber.String())

	batch, err := scanBatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StockBatch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.StockBatch{}, fmt.Errorf("get stock batch: %w", err)
	}
	return batch, nil
}

func (s *PostgresStore) ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]models.StockBatch, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE vaccine_id = $1
		ORDER BY expires_on, batch_number
	`, vaccineID.String())
	if err != nil {
		return nil, fmt.Errorf("list stock batches: %w", err)
	}
	defer rows.Close()

	var out []models.StockBatch
	for rows.Next() {
		batch, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list stock batches: %w", err)
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// SelectEligible picks the next batch to consume. Inside a transaction the
// FOR UPDATE clause locks the chosen row until commit, so the subsequent
// ConsumeOne cannot lose to a concurrent consumer.
func (s *PostgresStore) SelectEligible(ctx context.Context, vaccineID id.VaccineID, now time.Time) (models.StockBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM stock_batches
		WHERE vaccine_id = $1
		  AND status = $2
		  AND quantity >= 1
		  AND expires_on > $3
		ORDER BY expires_on, batch_number
		LIMIT 1
	`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}

	row := s.conn(ctx).QueryRowContext(ctx, query, vaccineID.String(), string(models.BatchAvailable), now)
	batch, err := scanBatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StockBatch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.StockBatch{}, fmt.Errorf("select eligible batch: %w", err)
	}
	return batch, nil
}

// ConsumeOne decrements by one. The guard repeats the eligibility predicate
// so the update succeeds only against the state the allocator saw; zero rows
// affected means the race was lost.
func (s *PostgresStore) ConsumeOne(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, now time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE stock_batches
		SET quantity = quantity - 1,
		    status = CASE WHEN quantity - 1 = 0 THEN $5 ELSE status END
		WHERE vaccine_id = $1
		  AND batch_number = $2
		  AND status = $3
		  AND quantity >= 1
		  AND expires_on > $4
	`,
		vaccineID.String(),
		batchNumber.String(),
		string(models.BatchAvailable),
		now,
		string(models.BatchExhausted),
	)
	if err != nil {
		return fmt.Errorf("consume dose: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume dose: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// Decrement removes quantity units for a manual deduction; the guard is
// quantity only.
func (s *PostgresStore) Decrement(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, quantity int) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE stock_batches
		SET quantity = quantity - $3,
		    status = CASE WHEN quantity - $3 = 0 THEN $4 ELSE status END
		WHERE vaccine_id = $1
		  AND batch_number = $2
		  AND quantity >= $3
	`,
		vaccineID.String(),
		batchNumber.String(),
		quantity,
		string(models.BatchExhausted),
	)
	if err != nil {
		return fmt.Errorf("decrement stock batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock batch: %w", err)
	}
	if n == 0 {
		// Distinguish a short batch from a missing one.
		if _, getErr := s.Get(ctx, vaccineID, batchNumber); getErr != nil {
			return getErr
		}
		return sentinel.ErrInsufficient
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, from, to models.BatchStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE stock_batches
		SET status = $4
		WHERE vaccine_id = $1 AND batch_number = $2 AND status = $3
	`, vaccineID.String(), batchNumber.String(), string(from), string(to))
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, vaccineID, batchNumber); getErr != nil {
			return getErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE stock_batches
		SET status = $1
		WHERE status IN ($2, $3) AND expires_on <= $4
	`,
		string(models.BatchExpired),
		string(models.BatchAvailable),
		string(models.BatchQuarantined),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("mark expired batches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark expired batches: %w", err)
	}
	return int(n), nil
}
