package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditpg "vaxtrack/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	rows      []auditpg.OutboxRow
	published []int64
}

func (f *fakeOutbox) Unpublished(_ context.Context, limit int) ([]auditpg.OutboxRow, error) {
	if limit > len(f.rows) {
		limit = len(f.rows)
	}
	return f.rows[:limit], nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, seqs []int64) error {
	f.published = append(f.published, seqs...)
	return nil
}

type fakeProducer struct {
	failAfter int
	produced  []string
}

func (f *fakeProducer) Produce(_ context.Context, key string, _ []byte) error {
	if f.failAfter >= 0 && len(f.produced) >= f.failAfter {
		return errors.New("broker unreachable")
	}
	f.produced = append(f.produced, key)
	return nil
}

func outboxRows(n int) []auditpg.OutboxRow {
	rows := make([]auditpg.OutboxRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, auditpg.OutboxRow{
			Seq:      int64(i + 1),
			Category: "operations",
			Payload:  []byte(`{}`),
		})
	}
	return rows
}

func TestRelayOncePublishesAllRows(t *testing.T) {
	outbox := &fakeOutbox{rows: outboxRows(3)}
	producer := &fakeProducer{failAfter: -1}
	relay := NewRelay(outbox, producer, slog.New(slog.DiscardHandler))

	require.NoError(t, relay.relayOnce(context.Background()))

	assert.Len(t, producer.produced, 3)
	assert.Equal(t, []int64{1, 2, 3}, outbox.published)
}

func TestRelayOnceMarksOnlyProducedPrefix(t *testing.T) {
	outbox := &fakeOutbox{rows: outboxRows(5)}
	producer := &fakeProducer{failAfter: 2}
	relay := NewRelay(outbox, producer, slog.New(slog.DiscardHandler))

	// The producer fails on the third row; the first two must still be
	// marked so they are not re-sent, and the rest must stay unpublished.
	require.NoError(t, relay.relayOnce(context.Background()))

	assert.Len(t, producer.produced, 2)
	assert.Equal(t, []int64{1, 2}, outbox.published)
}

func TestRelayOnceEmptyOutbox(t *testing.T) {
	outbox := &fakeOutbox{}
	producer := &fakeProducer{failAfter: -1}
	relay := NewRelay(outbox, producer, slog.New(slog.DiscardHandler))

	require.NoError(t, relay.relayOnce(context.Background()))
	assert.Empty(t, producer.produced)
	assert.Empty(t, outbox.published)
}
