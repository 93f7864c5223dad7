package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vaxtrack/internal/inventory/models"
	"vaxtrack/internal/inventory/store"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/requestcontext"
)

func TestAllocatorSelectBatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	vaccineID := id.VaccineID(uuid.New())
	operatorID := id.OperatorID(uuid.New())

	seed := func(t *testing.T, batches ...models.StockBatch) *store.InMemoryStore {
		t.Helper()
		st := store.NewInMemoryStore()
		for _, b := range batches {
			b.VaccineID = vaccineID
			b.ReceivedBy = operatorID
			b.ReceivedAt = now
			if b.Status == "" {
				b.Status = models.BatchAvailable
			}
			require.NoError(t, st.Insert(context.Background(), b))
		}
		return st
	}

	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("picks the earliest-expiring eligible batch", func(t *testing.T) {
		st := seed(t,
			models.StockBatch{BatchNumber: "B2", QuantityOnHand: 10, ExpirationDate: now.AddDate(0, 0, 60)},
			models.StockBatch{BatchNumber: "B1", QuantityOnHand: 10, ExpirationDate: now.AddDate(0, 0, 30)},
		)

		batch, ok, err := NewAllocator(st).SelectBatch(ctx, vaccineID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, id.BatchNumber("B1"), batch.BatchNumber)
	})

	t.Run("breaks expiry ties by batch number, lexicographically", func(t *testing.T) {
		expiry := now.AddDate(0, 0, 30)
		st := seed(t,
			models.StockBatch{BatchNumber: "A100", QuantityOnHand: 5, ExpirationDate: expiry},
			models.StockBatch{BatchNumber: "A050", QuantityOnHand: 5, ExpirationDate: expiry},
		)

		batch, ok, err := NewAllocator(st).SelectBatch(ctx, vaccineID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, id.BatchNumber("A050"), batch.BatchNumber)
	})

	t.Run("skips quarantined, empty, and expired batches", func(t *testing.T) {
		st := seed(t,
			models.StockBatch{BatchNumber: "Q1", QuantityOnHand: 10, ExpirationDate: now.AddDate(0, 0, 10), Status: models.BatchQuarantined},
			models.StockBatch{BatchNumber: "Z1", QuantityOnHand: 0, ExpirationDate: now.AddDate(0, 0, 10), Status: models.BatchExhausted},
			models.StockBatch{BatchNumber: "X1", QuantityOnHand: 10, ExpirationDate: now.AddDate(0, 0, -1)},
			models.StockBatch{BatchNumber: "OK1", QuantityOnHand: 1, ExpirationDate: now.AddDate(0, 0, 90)},
		)

		batch, ok, err := NewAllocator(st).SelectBatch(ctx, vaccineID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, id.BatchNumber("OK1"), batch.BatchNumber)
	})

	t.Run("a batch expiring exactly now is not eligible", func(t *testing.T) {
		st := seed(t,
			models.StockBatch{BatchNumber: "T1", QuantityOnHand: 10, ExpirationDate: now},
		)

		_, ok, err := NewAllocator(st).SelectBatch(ctx, vaccineID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("no eligible batch is an ordinary outcome", func(t *testing.T) {
		st := seed(t)

		_, ok, err := NewAllocator(st).SelectBatch(ctx, vaccineID)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
