package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dirmodels "vaxtrack/internal/directory/models"
	"vaxtrack/internal/inventory/metrics"
	"vaxtrack/internal/inventory/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	audit "vaxtrack/pkg/platform/audit"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

// Store is the ledger persistence seam. Implementations guarantee the
// quantity guard: a decrement that would take a batch negative fails without
// mutation.
type Store interface {
	Insert(ctx context.Context, batch models.StockBatch) error
	Get(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber) (models.StockBatch, error)
	ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]models.StockBatch, error)
	SelectEligible(ctx context.Context, vaccineID id.VaccineID, now time.Time) (models.StockBatch, error)
	ConsumeOne(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, now time.Time) error
	Decrement(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, quantity int) error
	UpdateStatus(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, from, to models.BatchStatus) error
	MarkExpired(ctx context.Context, now time.Time) (int, error)
}

// Directory resolves the references a ledger mutation must validate.
type Directory interface {
	GetVaccine(ctx context.Context, vaccineID id.VaccineID) (dirmodels.Vaccine, error)
	GetOperator(ctx context.Context, operatorID id.OperatorID) (dirmodels.Operator, error)
}

// AuditPublisher emits audit events for ledger mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Tx runs a ledger mutation with all-or-nothing semantics. Sharing the
// administration workflow's Tx serializes these mutations against in-flight
// workflows, so a workflow rollback can never erase a committed mutation.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// nopTx runs the mutation directly; the default when no Tx is configured.
type nopTx struct{}

func (nopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service owns all mutations of the stock ledger outside the administration
// workflow: receipt, manual deduction, quarantine, and the expiry sweep.
type Service struct {
	store     Store
	directory Directory
	auditor   AuditPublisher
	logger    *slog.Logger
	tx        Tx
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTx routes ledger mutations through the given transactional boundary.
func WithTx(tx Tx) Option {
	return func(s *Service) { s.tx = tx }
}

func NewService(store Store, directory Directory, auditor AuditPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		auditor:   auditor,
		logger:    logger,
		tx:        nopTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ReceiveBatchInput struct {
	VaccineID      id.VaccineID
	BatchNumber    id.BatchNumber
	Quantity       int
	ExpirationDate time.Time
	ReceivedBy     id.OperatorID
}

// ReceiveBatch creates an AVAILABLE batch. The expiry must be in the future:
// receiving already-expired stock is a data-entry error, not a lifecycle
// event.
func (s *Service) ReceiveBatch(ctx context.Context, in ReceiveBatchInput) (models.StockBatch, error) {
	if in.Quantity <= 0 {
		return models.StockBatch{}, dErrors.New(dErrors.CodeInvalidInput, "quantity must be positive")
	}
	now := requestcontext.Now(ctx)
	if !in.ExpirationDate.After(now) {
		return models.StockBatch{}, dErrors.New(dErrors.CodeInvalidState, "expiration date must be in the future")
	}

	if _, err := s.resolveVaccine(ctx, in.VaccineID); err != nil {
		return models.StockBatch{}, err
	}
	if _, err := s.resolveOperator(ctx, in.ReceivedBy); err != nil {
		return models.StockBatch{}, err
	}

	batch := models.StockBatch{
		VaccineID:      in.VaccineID,
		BatchNumber:    in.BatchNumber,
		QuantityOnHand: in.Quantity,
		ExpirationDate: in.ExpirationDate,
		Status:         models.BatchAvailable,
		ReceivedBy:     in.ReceivedBy,
		ReceivedAt:     now,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Insert(ctx, batch)
	})
	if errors.Is(err, sentinel.ErrDuplicate) {
		return models.StockBatch{}, dErrors.New(dErrors.CodeDuplicate, "batch number already exists for this vaccine")
	}
	if err != nil {
		return models.StockBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert batch")
	}

	if s.metrics != nil {
		s.metrics.BatchesReceived.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventBatchReceived),
		Timestamp:   now,
		OperatorID:  in.ReceivedBy,
		VaccineID:   in.VaccineID,
		BatchNumber: in.BatchNumber,
		Quantity:    in.Quantity,
		Outcome:     "success",
	})
	return batch, nil
}

type DeductInput struct {
	VaccineID   id.VaccineID
	BatchNumber id.BatchNumber
	Quantity    int
	Reason      models.DeductionReason
	OperatorID  id.OperatorID
}

// Deduct removes stock outside an administration: waste, loss, or transfer.
// Either the full quantity comes off and the deduction is audited, or
// nothing changes.
func (s *Service) Deduct(ctx context.Context, in DeductInput) error {
	if in.Quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "quantity must be positive")
	}
	if !in.Reason.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown deduction reason")
	}

	if _, err := s.resolveVaccine(ctx, in.VaccineID); err != nil {
		return err
	}
	if _, err := s.resolveOperator(ctx, in.OperatorID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Decrement(ctx, in.VaccineID, in.BatchNumber, in.Quantity)
	})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "batch not found")
	case errors.Is(err, sentinel.ErrInsufficient):
		return dErrors.New(dErrors.CodeInsufficientStock, "requested quantity exceeds stock on hand")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deduct stock")
	}

	if s.metrics != nil {
		s.metrics.DosesDeducted.WithLabelValues(string(in.Reason)).Add(float64(in.Quantity))
	}
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventStockDeducted),
		Timestamp:   requestcontext.Now(ctx),
		OperatorID:  in.OperatorID,
		VaccineID:   in.VaccineID,
		BatchNumber: in.BatchNumber,
		Quantity:    in.Quantity,
		Reason:      string(in.Reason),
		Outcome:     "success",
	})
	return nil
}

// Quarantine pulls an AVAILABLE batch out of allocation.
func (s *Service) Quarantine(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, operatorID id.OperatorID) error {
	return s.transition(ctx, vaccineID, batchNumber, operatorID,
		models.BatchAvailable, models.BatchQuarantined, audit.EventBatchQuarantined)
}

// Release returns a QUARANTINED batch to allocation.
func (s *Service) Release(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, operatorID id.OperatorID) error {
	return s.transition(ctx, vaccineID, batchNumber, operatorID,
		models.BatchQuarantined, models.BatchAvailable, audit.EventBatchReleased)
}

func (s *Service) transition(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, operatorID id.OperatorID, from, to models.BatchStatus, action audit.AuditEvent) error {
	if _, err := s.resolveOperator(ctx, operatorID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.UpdateStatus(ctx, vaccineID, batchNumber, from, to)
	})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "batch not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "batch is not in the required status")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update batch status")
	}

	s.emit(ctx, audit.Event{
		Action:      string(action),
		Timestamp:   requestcontext.Now(ctx),
		OperatorID:  operatorID,
		VaccineID:   vaccineID,
		BatchNumber: batchNumber,
		Outcome:     "success",
	})
	return nil
}

// MarkExpired sweeps past-expiry batches into the terminal EXPIRED status.
// Allocation already excludes them by date; the sweep keeps the stored
// status honest for reporting.
func (s *Service) MarkExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	var changed int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var txErr error
		changed, txErr = s.store.MarkExpired(ctx, now)
		return txErr
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark expired batches")
	}
	if changed > 0 {
		if s.metrics != nil {
			s.metrics.BatchesExpired.Add(float64(changed))
		}
		s.emit(ctx, audit.Event{
			Action:    string(audit.EventBatchExpired),
			Timestamp: now,
			Quantity:  changed,
			Outcome:   "success",
		})
	}
	return changed, nil
}

func (s *Service) GetBatch(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber) (models.StockBatch, error) {
	batch, err := s.store.Get(ctx, vaccineID, batchNumber)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.StockBatch{}, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	if err != nil {
		return models.StockBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
	}
	return batch, nil
}

func (s *Service) ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]models.StockBatch, error) {
	if _, err := s.resolveVaccine(ctx, vaccineID); err != nil {
		return nil, err
	}
	batches, err := s.store.ListByVaccine(ctx, vaccineID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list batches")
	}
	return batches, nil
}

func (s *Service) resolveVaccine(ctx context.Context, vaccineID id.VaccineID) (dirmodels.Vaccine, error) {
	vaccine, err := s.directory.GetVaccine(ctx, vaccineID)
	if err != nil {
		return dirmodels.Vaccine{}, err
	}
	return vaccine, nil
}

func (s *Service) resolveOperator(ctx context.Context, operatorID id.OperatorID) (dirmodels.Operator, error) {
	operator, err := s.directory.GetOperator(ctx, operatorID)
	if err != nil {
		return dirmodels.Operator{}, err
	}
	return operator, nil
}

// emit logs and moves on when the audit sink fails: ledger mutations are
// already durable at this point and must not be undone by sink trouble.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}
