package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	admmodels "vaxtrack/internal/administration/models"
	admstore "vaxtrack/internal/administration/store"
	compmodels "vaxtrack/internal/compliance/models"
	compstore "vaxtrack/internal/compliance/store"
	dirservice "vaxtrack/internal/directory/service"
	dirstore "vaxtrack/internal/directory/store"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/requestcontext"
)

type ComplianceSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time

	directory *dirservice.Service
	records   *admstore.InMemoryStore
	schedules *compstore.InMemoryStore
	service   *Service

	vaccineID  id.VaccineID
	operatorID id.OperatorID
}

func TestComplianceSuite(t *testing.T) {
	suite.Run(t, new(ComplianceSuite))
}

func (s *ComplianceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.directory = dirservice.NewService(dirstore.NewInMemoryStore())
	s.records = admstore.NewInMemoryStore()
	s.schedules = compstore.NewInMemoryStore()
	s.service = NewService(s.schedules, s.records, s.directory, slog.New(slog.DiscardHandler))

	vaccine, err := s.directory.CreateVaccine(s.ctx, dirservice.CreateVaccineInput{Code: "MMR", Name: "Measles Mumps Rubella"})
	s.Require().NoError(err)
	s.vaccineID = vaccine.ID

	operator, err := s.directory.CreateOperator(s.ctx, dirservice.CreateOperatorInput{FullName: "Nurse Joy"})
	s.Require().NoError(err)
	s.operatorID = operator.ID
}

// registerPatient creates a patient of the given age in whole months.
func (s *ComplianceSuite) registerPatient(ageMonths int) id.PatientID {
	patient, err := s.directory.RegisterPatient(s.ctx, dirservice.RegisterPatientInput{
		FullName:  "Ana Silva",
		BirthDate: s.now.AddDate(0, -ageMonths, 0),
	})
	s.Require().NoError(err)
	return patient.ID
}

func (s *ComplianceSuite) scheduleDose(dose, ageMonths int) {
	s.Require().NoError(s.schedules.Save(s.ctx, compmodels.DoseSchedule{
		VaccineID:            s.vaccineID,
		DoseNumber:           dose,
		RecommendedAgeMonths: ageMonths,
		Mandatory:            true,
	}))
}

func (s *ComplianceSuite) record(patientID id.PatientID, administeredAt time.Time) {
	s.Require().NoError(s.records.Insert(s.ctx, admmodels.AdministrationRecord{
		ID:             id.RecordID(uuid.New()),
		PatientID:      patientID,
		VaccineID:      s.vaccineID,
		DoseNumber:     1,
		BatchNumber:    "B001",
		OperatorID:     s.operatorID,
		AdministeredAt: administeredAt,
		CreatedAt:      administeredAt,
	}))
}

func (s *ComplianceSuite) TestIsOverdue() {
	s.scheduleDose(1, 12)

	s.Run("overdue when age exceeds recommendation plus grace", func() {
		patientID := s.registerPatient(14)
		overdue, err := s.service.IsOverdue(s.ctx, patientID, s.vaccineID, DefaultGraceMonths)
		s.Require().NoError(err)
		s.True(overdue)
	})

	s.Run("not overdue inside the grace period", func() {
		patientID := s.registerPatient(13)
		overdue, err := s.service.IsOverdue(s.ctx, patientID, s.vaccineID, DefaultGraceMonths)
		s.Require().NoError(err)
		s.False(overdue)
	})

	s.Run("an administration record clears the flag", func() {
		patientID := s.registerPatient(14)
		s.record(patientID, s.now.AddDate(0, -1, 0))

		overdue, err := s.service.IsOverdue(s.ctx, patientID, s.vaccineID, DefaultGraceMonths)
		s.Require().NoError(err)
		s.False(overdue)
	})

	s.Run("a wider grace period defers the flag", func() {
		patientID := s.registerPatient(14)
		overdue, err := s.service.IsOverdue(s.ctx, patientID, s.vaccineID, 3)
		s.Require().NoError(err)
		s.False(overdue)
	})

	s.Run("unknown patient yields false, not an error", func() {
		overdue, err := s.service.IsOverdue(s.ctx, id.PatientID{}, s.vaccineID, DefaultGraceMonths)
		s.Require().NoError(err)
		s.False(overdue)
	})

	s.Run("missing schedule entry yields false", func() {
		patientID := s.registerPatient(30)
		otherVaccine, err := s.directory.CreateVaccine(s.ctx, dirservice.CreateVaccineInput{Code: "HPV", Name: "Human Papillomavirus"})
		s.Require().NoError(err)

		overdue, err := s.service.IsOverdue(s.ctx, patientID, otherVaccine.ID, DefaultGraceMonths)
		s.Require().NoError(err)
		s.False(overdue)
	})
}

func (s *ComplianceSuite) TestCoverage() {
	from := s.now.AddDate(0, -6, 0)
	to := s.now

	s.Run("empty population yields zero", func() {
		coverage, err := s.service.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		s.Zero(coverage)
	})

	s.Run("counts distinct vaccinated patients in the window", func() {
		covered := s.registerPatient(14)
		s.registerPatient(14)
		s.registerPatient(14)
		outside := s.registerPatient(14)

		s.record(covered, s.now.AddDate(0, -1, 0))
		s.record(outside, s.now.AddDate(0, -12, 0))

		coverage, err := s.service.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		s.InDelta(25.0, coverage, 0.001)
	})

	s.Run("repeated calls with no writes return identical results", func() {
		first, err := s.service.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		second, err := s.service.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("rejects an inverted window", func() {
		_, err := s.service.Coverage(s.ctx, s.vaccineID, to, from)
		s.Error(err)
	})

	s.Run("a configured cache serves repeated queries", func() {
		cache := &fakeCache{values: map[string]float64{}}
		cached := NewService(s.schedules, s.records, s.directory, slog.New(slog.DiscardHandler), WithCache(cache))

		first, err := cached.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		second, err := cached.Coverage(s.ctx, s.vaccineID, from, to)
		s.Require().NoError(err)
		s.Equal(first, second)
		s.Equal(1, cache.misses)
		s.Equal(1, cache.hits)
	})
}

type fakeCache struct {
	values map[string]float64
	hits   int
	misses int
}

func (c *fakeCache) Get(_ context.Context, key string) (float64, bool, error) {
	value, ok := c.values[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value float64) error {
	c.values[key] = value
	return nil
}
