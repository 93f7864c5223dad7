package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaxtrack/internal/administration/metrics"
	"vaxtrack/internal/administration/models"
	dirmodels "vaxtrack/internal/directory/models"
	invmodels "vaxtrack/internal/inventory/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	audit "vaxtrack/pkg/platform/audit"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

var workflowTracer = otel.Tracer("vaxtrack/administration")

// maxAllocationAttempts bounds retries after a lost allocate-then-decrement
// race. Each retry re-runs allocation from scratch against fresh ledger
// state.
const maxAllocationAttempts = 3

// RecordStore persists administration records.
type RecordStore interface {
	Insert(ctx context.Context, record models.AdministrationRecord) error
	Get(ctx context.Context, recordID id.RecordID) (models.AdministrationRecord, error)
	ListByPatientVaccine(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error)
	Correct(ctx context.Context, recordID id.RecordID, site, notes string) (models.AdministrationRecord, error)
}

// Allocator selects the batch to consume. It reports false when no batch
// qualifies.
type Allocator interface {
	SelectBatch(ctx context.Context, vaccineID id.VaccineID) (invmodels.StockBatch, bool, error)
}

// Ledger is the single mutation the workflow performs on stock: a guarded
// decrement of the selected batch by one unit.
type Ledger interface {
	ConsumeOne(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, now time.Time) error
}

// VisitLinker closes out a scheduled visit that anticipated this vaccine.
// It reports whether a visit was completed.
type VisitLinker interface {
	CompleteMatching(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID, now time.Time) (bool, error)
}

// Directory resolves and validates the references named in a request.
type Directory interface {
	GetPatient(ctx context.Context, patientID id.PatientID) (dirmodels.Patient, error)
	GetVaccine(ctx context.Context, vaccineID id.VaccineID) (dirmodels.Vaccine, error)
	GetOperator(ctx context.Context, operatorID id.OperatorID) (dirmodels.Operator, error)
}

// Tx runs a unit of work with all-or-nothing semantics.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher emits audit events for workflow outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Logger is the subset of slog the workflow needs.
type Logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Service orchestrates the administration workflow: allocate a batch, record
// the dose, decrement the ledger, and link any matching visit, as one atomic
// unit.
type Service struct {
	records   RecordStore
	allocator Allocator
	ledger    Ledger
	visits    VisitLinker
	directory Directory
	tx        Tx
	auditor   AuditPublisher
	logger    Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(records RecordStore, allocator Allocator, ledger Ledger, visits VisitLinker, directory Directory, tx Tx, auditor AuditPublisher, logger Logger, opts ...Option) *Service {
	s := &Service{
		records:   records,
		allocator: allocator,
		ledger:    ledger,
		visits:    visits,
		directory: directory,
		tx:        tx,
		auditor:   auditor,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AdministerInput struct {
	PatientID  id.PatientID
	VaccineID  id.VaccineID
	OperatorID id.OperatorID
	DoseNumber int

	AdministeredAt time.Time
	Site           string
	Notes          string

	// NextDoseAt is the recommended date for the following dose, when the
	// caller's dosing schedule defines one.
	NextDoseAt *time.Time
}

// Administer runs the full workflow. On success the returned record is
// durable together with the ledger decrement and any visit completion; on
// error nothing this invocation wrote is observable.
func (s *Service) Administer(ctx context.Context, in AdministerInput) (models.AdministrationRecord, error) {
	ctx, span := workflowTracer.Start(ctx, "administration.Administer",
		trace.WithAttributes(
			attribute.String("patient_id", in.PatientID.String()),
			attribute.String("vaccine_id", in.VaccineID.String()),
			attribute.Int("dose_number", in.DoseNumber),
		))
	defer span.End()

	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.WorkflowDuration.Observe(time.Since(started).Seconds())
		}
	}()

	if err := s.validate(ctx, in); err != nil {
		return models.AdministrationRecord{}, s.aborted(ctx, in, err)
	}

	var record models.AdministrationRecord
	var linked bool
	var err error
	for attempt := 1; ; attempt++ {
		record, linked, err = s.administerOnce(ctx, in)
		if err == nil || !dErrors.Retryable(err) || attempt == maxAllocationAttempts {
			break
		}
		if s.metrics != nil {
			s.metrics.AllocationConflicts.Inc()
		}
		s.logger.WarnContext(ctx, "allocation conflict, re-running allocation",
			"vaccine_id", in.VaccineID,
			"attempt", attempt,
		)
	}
	if err != nil {
		return models.AdministrationRecord{}, s.aborted(ctx, in, err)
	}

	if s.metrics != nil {
		s.metrics.Administrations.WithLabelValues("committed").Inc()
	}
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventDoseAdministered),
		Timestamp:   requestcontext.Now(ctx),
		OperatorID:  in.OperatorID,
		PatientID:   in.PatientID,
		VaccineID:   in.VaccineID,
		BatchNumber: record.BatchNumber,
		Quantity:    1,
		Outcome:     "success",
	})
	if linked {
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventVisitCompleted),
			Timestamp:  requestcontext.Now(ctx),
			OperatorID: in.OperatorID,
			PatientID:  in.PatientID,
			VaccineID:  in.VaccineID,
			Outcome:    "success",
		})
	}
	s.logger.InfoContext(ctx, "dose administered",
		"record_id", record.ID,
		"patient_id", in.PatientID,
		"vaccine_id", in.VaccineID,
		"batch_number", record.BatchNumber,
	)
	return record, nil
}

func (s *Service) validate(ctx context.Context, in AdministerInput) error {
	if in.DoseNumber <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "dose number must be positive")
	}
	if _, err := s.directory.GetPatient(ctx, in.PatientID); err != nil {
		return err
	}
	vaccine, err := s.directory.GetVaccine(ctx, in.VaccineID)
	if err != nil {
		return err
	}
	if !vaccine.Active {
		return dErrors.New(dErrors.CodeInvalidState, "vaccine is inactive")
	}
	operator, err := s.directory.GetOperator(ctx, in.OperatorID)
	if err != nil {
		return err
	}
	if !operator.Active {
		return dErrors.New(dErrors.CodeInvalidState, "operator is inactive")
	}
	return nil
}

// administerOnce performs one allocation attempt inside its own transactional
// scope. A lost decrement race surfaces as a retryable conflict; the caller
// decides whether to re-run.
func (s *Service) administerOnce(ctx context.Context, in AdministerInput) (models.AdministrationRecord, bool, error) {
	var record models.AdministrationRecord
	var linked bool

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		batch, ok, err := s.allocator.SelectBatch(ctx, in.VaccineID)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeInventoryExhausted, "no eligible batch for vaccine")
		}

		administeredAt := in.AdministeredAt
		if administeredAt.IsZero() {
			administeredAt = now
		}
		record = models.AdministrationRecord{
			ID:             id.RecordID(uuid.New()),
			PatientID:      in.PatientID,
			VaccineID:      in.VaccineID,
			DoseNumber:     in.DoseNumber,
			BatchNumber:    batch.BatchNumber,
			OperatorID:     in.OperatorID,
			AdministeredAt: administeredAt,
			Site:           in.Site,
			Notes:          in.Notes,
			NextDoseAt:     in.NextDoseAt,
			CreatedAt:      now,
		}
		err = s.records.Insert(ctx, record)
		if errors.Is(err, sentinel.ErrDuplicate) {
			return dErrors.New(dErrors.CodeDuplicate, "dose already recorded for this patient and vaccine")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert administration record")
		}

		err = s.ledger.ConsumeOne(ctx, in.VaccineID, batch.BatchNumber, now)
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConcurrentConflict, "selected batch was consumed concurrently")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrement batch")
		}

		// Visit linking is best effort. A failure here is logged and
		// suppressed at exactly this point; the administration itself
		// stands.
		completed, err := s.visits.CompleteMatching(ctx, in.PatientID, in.VaccineID, now)
		if err != nil {
			s.logger.WarnContext(ctx, "visit linking failed, continuing",
				"patient_id", in.PatientID,
				"vaccine_id", in.VaccineID,
				"error", err,
			)
		}
		linked = completed
		return nil
	})
	if err != nil {
		return models.AdministrationRecord{}, false, err
	}
	return record, linked, nil
}

// aborted records the failed outcome and passes the error through. By the
// time this runs every mutation of the invocation has been rolled back.
func (s *Service) aborted(ctx context.Context, in AdministerInput, err error) error {
	if s.metrics != nil {
		s.metrics.Administrations.WithLabelValues("aborted").Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventAdministrationAborted),
		Timestamp:  requestcontext.Now(ctx),
		OperatorID: in.OperatorID,
		PatientID:  in.PatientID,
		VaccineID:  in.VaccineID,
		Reason:     string(dErrors.CodeOf(err)),
		Outcome:    "aborted",
	})
	return err
}

// CorrectRecord replaces the site and notes of an existing record. Every
// other field of a record is immutable once written.
func (s *Service) CorrectRecord(ctx context.Context, recordID id.RecordID, operatorID id.OperatorID, site, notes string) (models.AdministrationRecord, error) {
	if _, err := s.directory.GetOperator(ctx, operatorID); err != nil {
		return models.AdministrationRecord{}, err
	}

	record, err := s.records.Correct(ctx, recordID, site, notes)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AdministrationRecord{}, dErrors.New(dErrors.CodeNotFound, "administration record not found")
	}
	if err != nil {
		return models.AdministrationRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to correct record")
	}

	s.emit(ctx, audit.Event{
		Action:     string(audit.EventRecordCorrected),
		Timestamp:  requestcontext.Now(ctx),
		OperatorID: operatorID,
		PatientID:  record.PatientID,
		VaccineID:  record.VaccineID,
		Outcome:    "success",
	})
	return record, nil
}

func (s *Service) GetRecord(ctx context.Context, recordID id.RecordID) (models.AdministrationRecord, error) {
	record, err := s.records.Get(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AdministrationRecord{}, dErrors.New(dErrors.CodeNotFound, "administration record not found")
	}
	if err != nil {
		return models.AdministrationRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

func (s *Service) History(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error) {
	records, err := s.records.ListByPatientVaccine(ctx, patientID, vaccineID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	return records, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}
