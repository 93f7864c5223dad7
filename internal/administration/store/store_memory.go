package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"vaxtrack/internal/administration/models"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/sentinel"
)

type doseKey struct {
	patient id.PatientID
	vaccine id.VaccineID
	dose    int
}

// InMemoryStore keeps administration records in mutex-guarded maps. The
// dose index enforces the one-record-per-patient-vaccine-dose invariant.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]models.AdministrationRecord
	doses   map[doseKey]id.RecordID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.RecordID]models.AdministrationRecord),
		doses:   make(map[doseKey]id.RecordID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, record models.AdministrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrDuplicate
	}
	key := doseKey{record.PatientID, record.VaccineID, record.DoseNumber}
	if _, exists := s.doses[key]; exists {
		return sentinel.ErrDuplicate
	}
	s.records[record.ID] = record
	s.doses[key] = record.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, recordID id.RecordID) (models.AdministrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok {
		return models.AdministrationRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}

// ListByPatientVaccine returns the patient's records for one vaccine,
// ordered by dose number.
func (s *InMemoryStore) ListByPatientVaccine(_ context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AdministrationRecord
	for _, record := range s.records {
		if record.PatientID == patientID && record.VaccineID == vaccineID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DoseNumber < out[j].DoseNumber })
	return out, nil
}

// CountDistinctPatients counts patients with at least one record for the
// vaccine administered within [from, to].
func (s *InMemoryStore) CountDistinctPatients(_ context.Context, vaccineID id.VaccineID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.PatientID]struct{})
	for _, record := range s.records {
		if record.VaccineID != vaccineID {
			continue
		}
		if record.AdministeredAt.Before(from) || record.AdministeredAt.After(to) {
			continue
		}
		seen[record.PatientID] = struct{}{}
	}
	return len(seen), nil
}

// Correct replaces the site and notes of an existing record. Every other
// field is immutable.
func (s *InMemoryStore) Correct(_ context.Context, recordID id.RecordID, site, notes string) (models.AdministrationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return models.AdministrationRecord{}, sentinel.ErrNotFound
	}
	record.Site = site
	record.Notes = notes
	s.records[recordID] = record
	return record, nil
}

func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memorySnapshot{
		records: maps.Clone(s.records),
		doses:   maps.Clone(s.doses),
	}
}

func (s *InMemoryStore) Restore(snapshot any) {
	snap, ok := snapshot.(memorySnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap.records
	s.doses = snap.doses
}

type memorySnapshot struct {
	records map[id.RecordID]models.AdministrationRecord
	doses   map[doseKey]id.RecordID
}
