package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"vaxtrack/internal/administration/models"
	compmodels "vaxtrack/internal/compliance/models"
	dirmodels "vaxtrack/internal/directory/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

// DefaultGraceMonths is the grace period added to a dose's recommended age
// before it counts as overdue.
const DefaultGraceMonths = 1

// ScheduleStore reads dose schedule reference data.
type ScheduleStore interface {
	Get(ctx context.Context, vaccineID id.VaccineID, doseNumber int) (compmodels.DoseSchedule, error)
	ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]compmodels.DoseSchedule, error)
}

// RecordReader is the read side of the administration record history.
type RecordReader interface {
	ListByPatientVaccine(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error)
	CountDistinctPatients(ctx context.Context, vaccineID id.VaccineID, from, to time.Time) (int, error)
}

// Directory resolves patients and counts the coverage denominator.
type Directory interface {
	GetPatient(ctx context.Context, patientID id.PatientID) (dirmodels.Patient, error)
	CountActivePatients(ctx context.Context) (int, error)
}

// CoverageCache memoizes coverage results. A nil cache disables caching.
type CoverageCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64) error
}

// Service answers the two read-side questions: is a dose overdue for a
// patient, and what fraction of the population was covered in a window.
// It never mutates anything.
type Service struct {
	schedules ScheduleStore
	records   RecordReader
	directory Directory
	cache     CoverageCache
	logger    *slog.Logger

	graceMonths int
}

type Option func(*Service)

// WithCache enables coverage memoization.
func WithCache(cache CoverageCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithGraceMonths overrides the default overdue grace period.
func WithGraceMonths(months int) Option {
	return func(s *Service) { s.graceMonths = months }
}

func NewService(schedules ScheduleStore, records RecordReader, directory Directory, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		schedules:   schedules,
		records:     records,
		directory:   directory,
		logger:      logger,
		graceMonths: DefaultGraceMonths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GraceMonths returns the configured overdue grace period.
func (s *Service) GraceMonths() int { return s.graceMonths }

// IsOverdue reports whether the patient's first dose of the vaccine is
// overdue: no administration record exists and the patient's age in whole
// months exceeds the recommended age plus the grace period. Missing
// reference data yields false, never an error; this is a display hint, not
// a compliance gate.
func (s *Service) IsOverdue(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID, graceMonths int) (bool, error) {
	patient, err := s.directory.GetPatient(ctx, patientID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	records, err := s.records.ListByPatientVaccine(ctx, patientID, vaccineID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	if len(records) > 0 {
		return false, nil
	}

	// No records: the next unreceived dose is the first one.
	entry, err := s.schedules.Get(ctx, vaccineID, 1)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dose schedule")
	}

	ageMonths := patient.AgeInMonths(requestcontext.Now(ctx))
	return ageMonths > entry.RecommendedAgeMonths+graceMonths, nil
}

// Coverage returns the percentage of non-deleted patients with at least one
// record for the vaccine administered within [from, to]. An empty population
// yields 0. The two counts run in parallel; results are memoized when a
// cache is configured.
func (s *Service) Coverage(ctx context.Context, vaccineID id.VaccineID, from, to time.Time) (float64, error) {
	if to.Before(from) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "window end precedes window start")
	}

	key := coverageKey(vaccineID, from, to)
	if s.cache != nil {
		if value, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "coverage cache read failed", "error", err)
		} else if ok {
			return value, nil
		}
	}

	var vaccinated, population int
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		vaccinated, err = s.records.CountDistinctPatients(groupCtx, vaccineID, from, to)
		return err
	})
	group.Go(func() error {
		var err error
		population, err = s.directory.CountActivePatients(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute coverage")
	}

	if population == 0 {
		return 0, nil
	}
	value := float64(vaccinated) / float64(population) * 100

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, value); err != nil {
			s.logger.WarnContext(ctx, "coverage cache write failed", "error", err)
		}
	}
	return value, nil
}

func coverageKey(vaccineID id.VaccineID, from, to time.Time) string {
	return fmt.Sprintf("coverage:%s:%d:%d", vaccineID.String(), from.Unix(), to.Unix())
}
