package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"vaxtrack/internal/directory/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

// Store is the persistence seam for directory reference data.
type Store interface {
	SavePatient(ctx context.Context, patient models.Patient) error
	GetPatient(ctx context.Context, patientID id.PatientID) (models.Patient, error)
	SoftDeletePatient(ctx context.Context, patientID id.PatientID, deletedAt time.Time) error
	CountActivePatients(ctx context.Context) (int, error)

	SaveVaccine(ctx context.Context, vaccine models.Vaccine) error
	GetVaccine(ctx context.Context, vaccineID id.VaccineID) (models.Vaccine, error)
	SetVaccineActive(ctx context.Context, vaccineID id.VaccineID, active bool) error

	SaveOperator(ctx context.Context, operator models.Operator) error
	GetOperator(ctx context.Context, operatorID id.OperatorID) (models.Operator, error)
}

// Service owns registration and lookup of patients, vaccines, and operators.
// The administration workflow validates against these lookups; coverage
// reporting uses the active-patient count.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type RegisterPatientInput struct {
	FullName  string
	BirthDate time.Time
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (models.Patient, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return models.Patient{}, dErrors.New(dErrors.CodeInvalidInput, "patient name must not be empty")
	}
	now := requestcontext.Now(ctx)
	if in.BirthDate.IsZero() || in.BirthDate.After(now) {
		return models.Patient{}, dErrors.New(dErrors.CodeInvalidState, "birth date must be in the past")
	}

	patient := models.Patient{
		ID:        id.PatientID(uuid.New()),
		FullName:  name,
		BirthDate: in.BirthDate,
		CreatedAt: now,
	}
	if err := s.store.SavePatient(ctx, patient); err != nil {
		return models.Patient{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register patient")
	}
	return patient, nil
}

// GetPatient resolves a patient; soft-deleted patients report not found.
func (s *Service) GetPatient(ctx context.Context, patientID id.PatientID) (models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, patientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Patient{}, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	if err != nil {
		return models.Patient{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient")
	}
	if patient.Deleted() {
		return models.Patient{}, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, patientID id.PatientID) error {
	err := s.store.SoftDeletePatient(ctx, patientID, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete patient")
	}
	return nil
}

func (s *Service) CountActivePatients(ctx context.Context) (int, error) {
	count, err := s.store.CountActivePatients(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count patients")
	}
	return count, nil
}

type CreateVaccineInput struct {
	Code string
	Name string
}

func (s *Service) CreateVaccine(ctx context.Context, in CreateVaccineInput) (models.Vaccine, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return models.Vaccine{}, dErrors.New(dErrors.CodeInvalidInput, "vaccine code and name must not be empty")
	}

	vaccine := models.Vaccine{
		ID:        id.VaccineID(uuid.New()),
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: requestcontext.Now(ctx),
	}
	err := s.store.SaveVaccine(ctx, vaccine)
	if errors.Is(err, sentinel.ErrDuplicate) {
		return models.Vaccine{}, dErrors.New(dErrors.CodeDuplicate, "vaccine code already registered")
	}
	if err != nil {
		return models.Vaccine{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vaccine")
	}
	return vaccine, nil
}

func (s *Service) GetVaccine(ctx context.Context, vaccineID id.VaccineID) (models.Vaccine, error) {
	vaccine, err := s.store.GetVaccine(ctx, vaccineID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Vaccine{}, dErrors.New(dErrors.CodeNotFound, "vaccine not found")
	}
	if err != nil {
		return models.Vaccine{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vaccine")
	}
	return vaccine, nil
}

// SetVaccineActive toggles whether a vaccine may be administered. Inactive
// vaccines keep their ledger and history but reject new administrations.
func (s *Service) SetVaccineActive(ctx context.Context, vaccineID id.VaccineID, active bool) error {
	err := s.store.SetVaccineActive(ctx, vaccineID, active)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vaccine not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update vaccine")
	}
	return nil
}

type CreateOperatorInput struct {
	FullName string
}

func (s *Service) CreateOperator(ctx context.Context, in CreateOperatorInput) (models.Operator, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return models.Operator{}, dErrors.New(dErrors.CodeInvalidInput, "operator name must not be empty")
	}

	operator := models.Operator{
		ID:        id.OperatorID(uuid.New()),
		FullName:  name,
		Active:    true,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.SaveOperator(ctx, operator); err != nil {
		return models.Operator{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create operator")
	}
	return operator, nil
}

func (s *Service) GetOperator(ctx context.Context, operatorID id.OperatorID) (models.Operator, error) {
	operator, err := s.store.GetOperator(ctx, operatorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Operator{}, dErrors.New(dErrors.CodeNotFound, "operator not found")
	}
	if err != nil {
		return models.Operator{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
	}
	return operator, nil
}
