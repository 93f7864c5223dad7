package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	id "vaxtrack/pkg/domain"
	audit "vaxtrack/pkg/platform/audit"
)

// entry pairs an event with its position in the tamper-evident hash chain.
type entry struct {
	event audit.Event
	hash  [blake2b.Size256]byte
}

// InMemoryStore is an append-only audit store with a blake2b hash chain.
// Each entry's hash covers the previous hash plus the canonical payload, so
// any mutation or reordering of history invalidates every later entry.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []entry
	last    [blake2b.Size256]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func chain(prev [blake2b.Size256]byte, payload []byte) [blake2b.Size256]byte {
	return blake2b.Sum256(append(prev[:], payload...))
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	payload, err := audit.Encode(uuid.New(), event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = chain(s.last, payload)
	s.entries = append(s.entries, entry{event: event, hash: s.last})
	return nil
}

// List returns all stored events in append order.
func (s *InMemoryStore) List(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.event)
	}
	return out, nil
}

// ListByPatient filters stored events by patient.
func (s *InMemoryStore) ListByPatient(_ context.Context, patientID id.PatientID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.entries {
		if e.event.PatientID == patientID {
			out = append(out, e.event)
		}
	}
	return out, nil
}

// Head returns the hash of the newest entry. Stable across calls with no
// intervening appends; persisting it externally anchors the whole chain.
func (s *InMemoryStore) Head() [blake2b.Size256]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
