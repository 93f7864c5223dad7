package store

import (
	"context"
	"sync"
	"time"

	"vaxtrack/internal/directory/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

// InMemoryStore backs the directory in dev and test profiles.
type InMemoryStore struct {
	mu        sync.RWMutex
	patients  map[id.PatientID]models.Patient
	vaccines  map[id.VaccineID]models.Vaccine
	operators map[id.OperatorID]models.Operator
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		patients:  make(map[id.PatientID]models.Patient),
		vaccines:  make(map[id.VaccineID]models.Vaccine),
		operators: make(map[id.OperatorID]models.Operator),
	}
}

func (s *InMemoryStore) SavePatient(_ context.Context, patient models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patients[patient.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.patients[patient.ID] = patient
	return nil
}

func (s *InMemoryStore) GetPatient(_ context.Context, patientID id.PatientID) (models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patient, ok := s.patients[patientID]
	if !ok {
		return models.Patient{}, sentinel.ErrNotFound
	}
	return patient, nil
}

func (s *InMemoryStore) SoftDeletePatient(_ context.Context, patientID id.PatientID, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	patient, ok := s.patients[patientID]
	if !ok || patient.Deleted() {
		return sentinel.ErrNotFound
	}
	patient.DeletedAt = &deletedAt
	s.patients[patientID] = patient
	return nil
}

// CountActivePatients counts non-deleted patients; the denominator of the
// coverage percentage.
func (s *InMemoryStore) CountActivePatients(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, patient := range s.patients {
		if !patient.Deleted() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) SaveVaccine(_ context.Context, vaccine models.Vaccine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vaccines[vaccine.ID]; exists {
		return sentinel.ErrDuplicate
	}
	for _, existing := range s.vaccines {
		if existing.Code == vaccine.Code {
			return sentinel.ErrDuplicate
		}
	}
	s.vaccines[vaccine.ID] = vaccine
	return nil
}

func (s *InMemoryStore) GetVaccine(_ context.Context, vaccineID id.VaccineID) (models.Vaccine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vaccine, ok := s.vaccines[vaccineID]
	if !ok {
		return models.Vaccine{}, sentinel.ErrNotFound
	}
	return vaccine, nil
}

func (s *InMemoryStore) SetVaccineActive(_ context.Context, vaccineID id.VaccineID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vaccine, ok := s.vaccines[vaccineID]
	if !ok {
		return sentinel.ErrNotFound
	}
	vaccine.Active = active
	s.vaccines[vaccineID] = vaccine
	return nil
}

func (s *InMemoryStore) SaveOperator(_ context.Context, operator models.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.operators[operator.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.operators[operator.ID] = operator
	return nil
}

func (s *InMemoryStore) GetOperator(_ context.Context, operatorID id.OperatorID) (models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	operator, ok := s.operators[operatorID]
	if !ok {
		return models.Operator{}, sentinel.ErrNotFound
	}
	return operator, nil
}
