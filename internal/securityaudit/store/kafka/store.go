// Package kafka publishes security events to a Kafka topic, keyed by actor
// so each actor's events stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"courtside/internal/securityaudit"
)

// Producer is the subset of *kgo.Client used by Store.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store produces security events as JSON records.
type Store struct {
	producer Producer
	topic    string
}

// New creates a Kafka security event store. An empty topic uses the
// producer's default topic.
func New(producer Producer, topic string) (*Store, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &Store{producer: producer, topic: topic}, nil
}

// AppendBatch produces events synchronously and returns the first failure.
// Consumers must dedupe by event id since a retried batch may be delivered
// twice.
func (s *Store) AppendBatch(ctx context.Context, events []securityaudit.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal security event %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(e.ActorID),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.ID)},
				{Key: "event_type", Value: []byte(e.Type)},
				{Key: "risk_level", Value: []byte(e.RiskLevel)},
			},
			Timestamp: e.Timestamp,
		})
	}

	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce security events: %w", err)
	}
	return nil
}
