package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"vaxtrack/internal/inventory/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

type batchKey struct {
	vaccine id.VaccineID
	batch   id.BatchNumber
}

// InMemoryStore keeps the ledger in a mutex-guarded map. Decrements are
// compare-and-swap under the store lock, so the concurrency contract holds
// without an external transaction: a guarded decrement either observes the
// required quantity and applies atomically, or fails without mutation.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[batchKey]models.StockBatch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{batches: make(map[batchKey]models.StockBatch)}
}

func (s *InMemoryStore) Insert(_ context.Context, batch models.StockBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batchKey{batch.VaccineID, batch.BatchNumber}
	if _, exists := s.batches[key]; exists {
		return sentinel.ErrDuplicate
	}
	s.batches[key] = batch
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber) (models.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchKey{vaccineID, batchNumber}]
	if !ok {
		return models.StockBatch{}, sentinel.ErrNotFound
	}
	return batch, nil
}

func (s *InMemoryStore) ListByVaccine(_ context.Context, vaccineID id.VaccineID) ([]models.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StockBatch
	for key, batch := range s.batches {
		if key.vaccine == vaccineID {
			out = append(out, batch)
		}
	}
	sortBatches(out)
	return out, nil
}

// SelectEligible returns the batch the allocator should consume next:
// earliest expiration wins, ties broken by the lexicographically smallest
// batch number. Map iteration order never leaks into the result.
func (s *InMemoryStore) SelectEligible(_ context.Context, vaccineID id.VaccineID, now time.Time) (models.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best models.StockBatch
	found := false
	for key, batch := range s.batches {
		if key.vaccine != vaccineID || !batch.EligibleAt(now) {
			continue
		}
		if !found || expiresBefore(batch, best) {
			best = batch
			found = true
		}
	}
	if !found {
		return models.StockBatch{}, sentinel.ErrNotFound
	}
	return best, nil
}

// ConsumeOne decrements an eligible batch by exactly one unit.
// Compare-and-swap: when a concurrent consumer drained the batch (or it left
// the eligible state) between selection and this call, nothing changes and
// sentinel.ErrConflict reports the lost race.
func (s *InMemoryStore) ConsumeOne(_ context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey{vaccineID, batchNumber}
	batch, ok := s.batches[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !batch.EligibleAt(now) {
		return sentinel.ErrConflict
	}

	batch.QuantityOnHand--
	if batch.QuantityOnHand == 0 {
		batch.Status = models.BatchExhausted
	}
	s.batches[key] = batch
	return nil
}

// Decrement removes quantity units for a manual deduction. The guard is
// quantity only: wastage may be recorded against quarantined stock too.
func (s *InMemoryStore) Decrement(_ context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey{vaccineID, batchNumber}
	batch, ok := s.batches[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if batch.QuantityOnHand < quantity {
		return sentinel.ErrInsufficient
	}

	batch.QuantityOnHand -= quantity
	if batch.QuantityOnHand == 0 {
		batch.Status = models.BatchExhausted
	}
	s.batches[key] = batch
	return nil
}

// UpdateStatus transitions a batch between non-terminal statuses.
func (s *InMemoryStore) UpdateStatus(_ context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, from, to models.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKey{vaccineID, batchNumber}
	batch, ok := s.batches[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if batch.Status != from {
		return sentinel.ErrInvalidState
	}
	batch.Status = to
	s.batches[key] = batch
	return nil
}

// MarkExpired transitions past-expiry AVAILABLE and QUARANTINED batches to
// the terminal EXPIRED status; returns how many rows changed.
func (s *InMemoryStore) MarkExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for key, batch := range s.batches {
		if batch.Status != models.BatchAvailable && batch.Status != models.BatchQuarantined {
			continue
		}
		if batch.ExpirationDate.After(now) {
			continue
		}
		batch.Status = models.BatchExpired
		s.batches[key] = batch
		changed++
	}
	return changed, nil
}

// Snapshot and Restore let the in-memory transaction runner roll back
// partial workflow mutations.

func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.batches)
}

func (s *InMemoryStore) Restore(snapshot any) {
	snap, ok := snapshot.(map[batchKey]models.StockBatch)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = snap
}

func expiresBefore(a, b models.StockBatch) bool {
	if !a.ExpirationDate.Equal(b.ExpirationDate) {
		return a.ExpirationDate.Before(b.ExpirationDate)
	}
	return a.BatchNumber < b.BatchNumber
}

func sortBatches(batches []models.StockBatch) {
	sort.Slice(batches, func(i, j int) bool {
		return expiresBefore(batches[i], batches[j])
	})
}
