package kafka

import (
	"context"
	"log/slog"
	"time"

	auditpg "vaxtrack/pkg/platform/audit/store/postgres"
)

// Producer is the relay's outbound seam; satisfied by *Sink and by test
// fakes, so relay behavior is testable without a broker.
type Producer interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

// Outbox is the relay's inbound seam; satisfied by the postgres audit store.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]auditpg.OutboxRow, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

// Relay moves committed outbox rows to Kafka. At-least-once: a crash between
// produce and mark re-sends the row, and consumers dedupe on the event ID.
type Relay struct {
	outbox   Outbox
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

func NewRelay(outbox Outbox, producer Producer, logger *slog.Logger) *Relay {
	return &Relay{
		outbox:    outbox,
		producer:  producer,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayOnce(ctx); err != nil {
				// Keep running; the next tick retries from the oldest
				// unpublished row.
				r.logger.ErrorContext(ctx, "audit relay pass failed", "error", err)
			}
		}
	}
}

func (r *Relay) relayOnce(ctx context.Context) error {
	rows, err := r.outbox.Unpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}

	var published []int64
	for _, row := range rows {
		if err := r.producer.Produce(ctx, row.Category, row.Payload); err != nil {
			break
		}
		published = append(published, row.Seq)
	}
	return r.outbox.MarkPublished(ctx, published)
}
