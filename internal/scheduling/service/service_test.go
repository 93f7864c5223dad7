package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dirservice "vaxtrack/internal/directory/service"
	dirstore "vaxtrack/internal/directory/store"
	"vaxtrack/internal/scheduling/models"
	"vaxtrack/internal/scheduling/store"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/requestcontext"
)

type SchedulingSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	service *Service

	patientID id.PatientID
	vaccineID id.VaccineID
}

func TestSchedulingSuite(t *testing.T) {
	suite.Run(t, new(SchedulingSuite))
}

func (s *SchedulingSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	directory := dirservice.NewService(dirstore.NewInMemoryStore())
	patient, err := directory.RegisterPatient(s.ctx, dirservice.RegisterPatientInput{
		FullName:  "Ana Silva",
		BirthDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.patientID = patient.ID

	vaccine, err := directory.CreateVaccine(s.ctx, dirservice.CreateVaccineInput{Code: "BCG", Name: "Bacillus Calmette-Guerin"})
	s.Require().NoError(err)
	s.vaccineID = vaccine.ID

	s.service = NewService(store.NewInMemoryStore(), directory, slog.New(slog.DiscardHandler))
}

func (s *SchedulingSuite) schedule() models.ScheduledVisit {
	visit, err := s.service.Schedule(s.ctx, ScheduleInput{
		PatientID:   s.patientID,
		ScheduledAt: s.now.AddDate(0, 0, 7),
		Vaccines:    []id.VaccineID{s.vaccineID},
	})
	s.Require().NoError(err)
	return visit
}

func (s *SchedulingSuite) TestSchedule() {
	s.Run("creates a scheduled visit", func() {
		visit := s.schedule()
		s.Equal(models.VisitScheduled, visit.Status)
		s.Equal([]id.VaccineID{s.vaccineID}, visit.Vaccines)
	})

	s.Run("rejects a past date", func() {
		_, err := s.service.Schedule(s.ctx, ScheduleInput{
			PatientID:   s.patientID,
			ScheduledAt: s.now.AddDate(0, 0, -1),
			Vaccines:    []id.VaccineID{s.vaccineID},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an empty vaccine list", func() {
		_, err := s.service.Schedule(s.ctx, ScheduleInput{
			PatientID:   s.patientID,
			ScheduledAt: s.now.AddDate(0, 0, 7),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an unknown patient", func() {
		_, err := s.service.Schedule(s.ctx, ScheduleInput{
			PatientID:   id.PatientID{},
			ScheduledAt: s.now.AddDate(0, 0, 7),
			Vaccines:    []id.VaccineID{s.vaccineID},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *SchedulingSuite) TestTransitions() {
	s.Run("confirm then cancel", func() {
		visit := s.schedule()
		s.Require().NoError(s.service.Confirm(s.ctx, visit.ID))
		s.Require().NoError(s.service.Cancel(s.ctx, visit.ID))

		got, err := s.service.GetVisit(s.ctx, visit.ID)
		s.Require().NoError(err)
		s.Equal(models.VisitCancelled, got.Status)
	})

	s.Run("closed visits reject further transitions", func() {
		visit := s.schedule()
		s.Require().NoError(s.service.Cancel(s.ctx, visit.ID))

		err := s.service.Confirm(s.ctx, visit.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown visit", func() {
		err := s.service.Confirm(s.ctx, id.VisitID{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
