package store

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory stores that can capture and
// restore their full state, giving the memory backend the same all-or-nothing
// contract a database transaction gives the Postgres backend.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// MemoryTx serializes units of work over a set of in-memory stores. Each
// unit runs under one lock with a snapshot taken first; an error restores
// every store, so partial mutations are never observable.
//
// Restore rolls back to the whole-store snapshot, so every mutation of a
// participating store must run through RunInTx. A write that bypasses the
// lock can land inside another unit's snapshot window and be erased by that
// unit's rollback.
type MemoryTx struct {
	mu     sync.Mutex
	stores []Snapshotter
}

func NewMemoryTx(stores ...Snapshotter) *MemoryTx {
	return &MemoryTx{stores: stores}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshots := make([]any, len(t.stores))
	for i, store := range t.stores {
		snapshots[i] = store.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, store := range t.stores {
			store.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
