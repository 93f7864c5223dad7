// Package kafka publishes audit events to a Kafka topic. Kafka is the source
// of truth for downstream audit consumers; the postgres outbox plus the Relay
// guarantee events of committed transactions reach it at least once.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "vaxtrack/pkg/platform/audit"
)

// Sink produces audit events to a single topic, keyed by category so
// consumers with per-category retention can partition on the key.
type Sink struct {
	client *kgo.Client
	topic  string
}

// NewSink connects to the brokers and ensures the topic exists.
func NewSink(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %q: %w", res.Topic, res.Err)
		}
	}

	return &Sink{client: client, topic: topic}, nil
}

// Append implements audit.Store by producing synchronously. The audit trail
// is the one place a slow broker is allowed to slow the caller down.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := audit.Encode(uuid.New(), event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(audit.AuditEvent(event.Action).Category()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Produce sends a pre-encoded payload; used by the outbox relay.
func (s *Sink) Produce(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{Topic: s.topic, Key: []byte(key), Value: payload}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
