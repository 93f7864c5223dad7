//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vaxtrack/internal/inventory/models"
	"vaxtrack/internal/inventory/store"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
	txcontext "vaxtrack/pkg/platform/tx"
	"vaxtrack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore

	vaccineID  id.VaccineID
	operatorID id.OperatorID
	now        time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx))

	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.vaccineID = id.VaccineID(uuid.New())
	s.operatorID = id.OperatorID(uuid.New())

	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO vaccines (id, code, name, active, created_at) VALUES ($1, $2, $3, TRUE, $4)`,
		s.vaccineID.String(), "BCG", "Bacillus Calmette-Guerin", s.now)
	s.Require().NoError(err)

	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO operators (id, full_name, active, created_at) VALUES ($1, $2, TRUE, $3)`,
		s.operatorID.String(), "Nurse Joy", s.now)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedBatch(batchNumber string, quantity int, expiresIn time.Duration) {
	err := s.store.Insert(context.Background(), models.StockBatch{
		VaccineID:      s.vaccineID,
		BatchNumber:    id.BatchNumber(batchNumber),
		QuantityOnHand: quantity,
		ExpirationDate: s.now.Add(expiresIn),
		Status:         models.BatchAvailable,
		ReceivedBy:     s.operatorID,
		ReceivedAt:     s.now,
	})
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestInsertDuplicate() {
	s.seedBatch("B001", 10, 30*24*time.Hour)

	err := s.store.Insert(context.Background(), models.StockBatch{
		VaccineID:      s.vaccineID,
		BatchNumber:    "B001",
		QuantityOnHand: 5,
		ExpirationDate: s.now.Add(60 * 24 * time.Hour),
		Status:         models.BatchAvailable,
		ReceivedBy:     s.operatorID,
		ReceivedAt:     s.now,
	})
	s.ErrorIs(err, sentinel.ErrDuplicate)
}

func (s *PostgresStoreSuite) TestSelectEligibleOrdering() {
	ctx := context.Background()
	s.seedBatch("B100", 5, 60*24*time.Hour)
	s.seedBatch("B050", 5, 10*24*time.Hour)
	s.seedBatch("A050", 5, 10*24*time.Hour)

	batch, err := s.store.SelectEligible(ctx, s.vaccineID, s.now)
	s.Require().NoError(err)
	// Same expiry as B050; the lexicographically smaller batch number wins.
	s.Equal(id.BatchNumber("A050"), batch.BatchNumber)
}

func (s *PostgresStoreSuite) TestConsumeOneGuard() {
	ctx := context.Background()
	s.seedBatch("B001", 1, 30*24*time.Hour)

	s.Require().NoError(s.store.ConsumeOne(ctx, s.vaccineID, "B001", s.now))

	batch, err := s.store.Get(ctx, s.vaccineID, "B001")
	s.Require().NoError(err)
	s.Equal(0, batch.QuantityOnHand)
	s.Equal(models.BatchExhausted, batch.Status)

	// The batch is exhausted; the guarded update must refuse a second dose.
	err = s.store.ConsumeOne(ctx, s.vaccineID, "B001", s.now)
	s.ErrorIs(err, sentinel.ErrConflict)
}

// consumeInTx mimics the allocation step of the administration workflow:
// select-for-update, decrement, commit.
func (s *PostgresStoreSuite) consumeInTx(ctx context.Context) error {
	tx, err := s.postgres.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	txCtx := txcontext.WithTx(ctx, tx)
	batch, err := s.store.SelectEligible(txCtx, s.vaccineID, s.now)
	if err != nil {
		return err
	}
	if err := s.store.ConsumeOne(txCtx, s.vaccineID, batch.BatchNumber, s.now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStoreSuite) TestConcurrentConsumption() {
	ctx := context.Background()
	const stock = 10
	const goroutines = 25
	s.seedBatch("B001", stock, 30*24*time.Hour)

	var wg sync.WaitGroup
	var consumed, exhausted atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.consumeInTx(ctx)
			switch {
			case err == nil:
				consumed.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrConflict):
				exhausted.Add(1)
			default:
				s.Failf("unexpected error", "consume: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(stock), consumed.Load(), "every unit of stock should be consumed exactly once")
	s.Equal(int32(goroutines-stock), exhausted.Load())

	batch, err := s.store.Get(ctx, s.vaccineID, "B001")
	s.Require().NoError(err)
	s.Equal(0, batch.QuantityOnHand)
	s.Equal(models.BatchExhausted, batch.Status)
}

func (s *PostgresStoreSuite) TestMarkExpired() {
	ctx := context.Background()
	s.seedBatch("OLD", 3, 24*time.Hour)
	s.seedBatch("NEW", 3, 90*24*time.Hour)

	changed, err := s.store.MarkExpired(ctx, s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, changed)

	batch, err := s.store.Get(ctx, s.vaccineID, "OLD")
	s.Require().NoError(err)
	s.Equal(models.BatchExpired, batch.Status)

	changed, err = s.store.MarkExpired(ctx, s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Zero(changed)
}
