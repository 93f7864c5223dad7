package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vaxtrack/internal/inventory/models"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/sentinel"
	"vaxtrack/pkg/requestcontext"
)

var allocatorTracer = otel.Tracer("vaxtrack/inventory/allocator")

// Allocator picks the next batch to consume for a vaccine: first-expiring
// first, ties broken by the smallest batch number. Selection never mutates
// the ledger; the consumer performs the guarded decrement inside its own
// transactional scope so selection and consumption stay one atomic pair.
type Allocator struct {
	store Store
}

func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// SelectBatch returns the chosen batch and true, or false when no batch
// qualifies. "No stock" is an ordinary outcome here, not an error; the
// caller decides whether it aborts a workflow.
func (a *Allocator) SelectBatch(ctx context.Context, vaccineID id.VaccineID) (models.StockBatch, bool, error) {
	ctx, span := allocatorTracer.Start(ctx, "allocator.SelectBatch")
	defer span.End()

	now := requestcontext.Now(ctx)
	batch, err := a.store.SelectEligible(ctx, vaccineID, now)
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetAttributes(attribute.Bool("allocator.available", false))
		return models.StockBatch{}, false, nil
	}
	if err != nil {
		return models.StockBatch{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to select batch")
	}

	span.SetAttributes(
		attribute.Bool("allocator.available", true),
		attribute.String("allocator.batch_number", batch.BatchNumber.String()),
	)
	return batch, true, nil
}
