package store

import (
	"context"
	"sort"
	"sync"

	"vaxtrack/internal/compliance/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

type scheduleKey struct {
	vaccine id.VaccineID
	dose    int
}

// InMemoryStore holds dose schedules, loaded once at startup.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[scheduleKey]models.DoseSchedule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[scheduleKey]models.DoseSchedule)}
}

func (s *InMemoryStore) Save(_ context.Context, entry models.DoseSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey{entry.VaccineID, entry.DoseNumber}
	if _, exists := s.entries[key]; exists {
		return sentinel.ErrDuplicate
	}
	s.entries[key] = entry
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, vaccineID id.VaccineID, doseNumber int) (models.DoseSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[scheduleKey{vaccineID, doseNumber}]
	if !ok {
		return models.DoseSchedule{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *InMemoryStore) ListByVaccine(_ context.Context, vaccineID id.VaccineID) ([]models.DoseSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DoseSchedule
	for key, entry := range s.entries {
		if key.vaccine == vaccineID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DoseNumber < out[j].DoseNumber })
	return out, nil
}
