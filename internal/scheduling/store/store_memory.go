package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"vaxtrack/internal/scheduling/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

// InMemoryStore keeps scheduled visits in a mutex-guarded map.
type InMemoryStore struct {
	mu     sync.RWMutex
	visits map[id.VisitID]models.ScheduledVisit
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{visits: make(map[id.VisitID]models.ScheduledVisit)}
}

func (s *InMemoryStore) Save(_ context.Context, visit models.ScheduledVisit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visits[visit.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.visits[visit.ID] = visit
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, visitID id.VisitID) (models.ScheduledVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visit, ok := s.visits[visitID]
	if !ok {
		return models.ScheduledVisit{}, sentinel.ErrNotFound
	}
	return visit, nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patientID id.PatientID) ([]models.ScheduledVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ScheduledVisit
	for _, visit := range s.visits {
		if visit.PatientID == patientID {
			out = append(out, visit)
		}
	}
	sortVisits(out)
	return out, nil
}

// UpdateStatus transitions a visit. The transition fails when the visit is
// already in a terminal status.
func (s *InMemoryStore) UpdateStatus(_ context.Context, visitID id.VisitID, to models.VisitStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	visit, ok := s.visits[visitID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if visit.Status.Terminal() {
		return sentinel.ErrInvalidState
	}
	visit.Status = to
	if to == models.VisitCompleted {
		visit.CompletedAt = &at
	}
	s.visits[visitID] = visit
	return nil
}

// CompleteMatching finds the earliest linkable visit for the patient that
// anticipates the vaccine and marks it COMPLETED. It reports false when no
// visit matches, which is not an error.
func (s *InMemoryStore) CompleteMatching(_ context.Context, patientID id.PatientID, vaccineID id.VaccineID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match *models.ScheduledVisit
	for _, visit := range s.visits {
		if visit.PatientID != patientID || !visit.Status.Linkable() || !visit.Anticipates(vaccineID) {
			continue
		}
		if match == nil || visit.ScheduledAt.Before(match.ScheduledAt) {
			v := visit
			match = &v
		}
	}
	if match == nil {
		return false, nil
	}
	match.Status = models.VisitCompleted
	match.CompletedAt = &now
	s.visits[match.ID] = *match
	return true, nil
}

func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.visits)
}

func (s *InMemoryStore) Restore(snapshot any) {
	visits, ok := snapshot.(map[id.VisitID]models.ScheduledVisit)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = visits
}

func sortVisits(visits []models.ScheduledVisit) {
	sort.Slice(visits, func(i, j int) bool {
		return visits[i].ScheduledAt.Before(visits[j].ScheduledAt)
	})
}
