package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dirmodels "vaxtrack/internal/directory/models"
	"vaxtrack/internal/scheduling/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

// Store persists scheduled visits.
type Store interface {
	Save(ctx context.Context, visit models.ScheduledVisit) error
	Get(ctx context.Context, visitID id.VisitID) (models.ScheduledVisit, error)
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]models.ScheduledVisit, error)
	UpdateStatus(ctx context.Context, visitID id.VisitID, to models.VisitStatus, at time.Time) error
}

// Directory resolves patient and vaccine references.
type Directory interface {
	GetPatient(ctx context.Context, patientID id.PatientID) (dirmodels.Patient, error)
	GetVaccine(ctx context.Context, vaccineID id.VaccineID) (dirmodels.Vaccine, error)
}

// Service manages visit scheduling. Visit completion during an
// administration bypasses this service and goes through the store inside
// the workflow's transactional scope.
type Service struct {
	store     Store
	directory Directory
	logger    *slog.Logger
}

func NewService(store Store, directory Directory, logger *slog.Logger) *Service {
	return &Service{store: store, directory: directory, logger: logger}
}

type ScheduleInput struct {
	PatientID   id.PatientID
	ScheduledAt time.Time
	Vaccines    []id.VaccineID
}

func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (models.ScheduledVisit, error) {
	now := requestcontext.Now(ctx)
	if !in.ScheduledAt.After(now) {
		return models.ScheduledVisit{}, dErrors.New(dErrors.CodeInvalidInput, "visit must be scheduled in the future")
	}
	if len(in.Vaccines) == 0 {
		return models.ScheduledVisit{}, dErrors.New(dErrors.CodeInvalidInput, "visit must anticipate at least one vaccine")
	}
	if _, err := s.directory.GetPatient(ctx, in.PatientID); err != nil {
		return models.ScheduledVisit{}, err
	}
	for _, vaccineID := range in.Vaccines {
		if _, err := s.directory.GetVaccine(ctx, vaccineID); err != nil {
			return models.ScheduledVisit{}, err
		}
	}

	visit := models.ScheduledVisit{
		ID:          id.VisitID(uuid.New()),
		PatientID:   in.PatientID,
		ScheduledAt: in.ScheduledAt,
		Status:      models.VisitScheduled,
		Vaccines:    in.Vaccines,
		CreatedAt:   now,
	}
	if err := s.store.Save(ctx, visit); err != nil {
		return models.ScheduledVisit{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save visit")
	}
	s.logger.InfoContext(ctx, "visit scheduled",
		"visit_id", visit.ID,
		"patient_id", visit.PatientID,
		"scheduled_at", visit.ScheduledAt,
	)
	return visit, nil
}

func (s *Service) Confirm(ctx context.Context, visitID id.VisitID) error {
	return s.transition(ctx, visitID, models.VisitConfirmed)
}

func (s *Service) Cancel(ctx context.Context, visitID id.VisitID) error {
	return s.transition(ctx, visitID, models.VisitCancelled)
}

func (s *Service) MarkNoShow(ctx context.Context, visitID id.VisitID) error {
	return s.transition(ctx, visitID, models.VisitNoShow)
}

func (s *Service) transition(ctx context.Context, visitID id.VisitID, to models.VisitStatus) error {
	err := s.store.UpdateStatus(ctx, visitID, to, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "visit not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "visit is already closed")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update visit status")
	}
	return nil
}

func (s *Service) GetVisit(ctx context.Context, visitID id.VisitID) (models.ScheduledVisit, error) {
	visit, err := s.store.Get(ctx, visitID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ScheduledVisit{}, dErrors.New(dErrors.CodeNotFound, "visit not found")
	}
	if err != nil {
		return models.ScheduledVisit{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visit")
	}
	return visit, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID id.PatientID) ([]models.ScheduledVisit, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	visits, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visits")
	}
	return visits, nil
}
