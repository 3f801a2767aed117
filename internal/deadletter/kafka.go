// Package deadletter exports entries that exhausted their retries. Export is
// optional: with no brokers configured the sink is nil and every method is a no-op,
// leaving acknowledgment plus the failed audit row as the only terminal record.
package deadletter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Record describes one abandoned stream entry.
type Record struct {
	EntryID      string          `json:"entry_id"`
	Stream       string          `json:"stream"`
	Group        string          `json:"group"`
	Consumer     string          `json:"consumer"`
	EventID      string          `json:"event_id,omitempty"`
	EventType    string          `json:"event_type,omitempty"`
	TenantID     string          `json:"tenant_id,omitempty"`
	Original     json.RawMessage `json:"original_event,omitempty"`
	ErrorSummary string          `json:"error_summary"`
	RetryCount   int             `json:"retry_count"`
	LastErrorAt  time.Time       `json:"last_error_at"`
}

// Sink receives dead-lettered entries.
type Sink interface {
	Send(ctx context.Context, rec Record) error
}

// KafkaSink writes records to a Kafka topic, keyed by tenant so one tenant's
// failures stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink returns nil when brokers or topic are empty.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Send serializes rec as JSON and writes it.
func (s *KafkaSink) Send(ctx context.Context, rec Record) error {
	if s == nil || s.writer == nil {
		return nil
	}
	msg, err := Message(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(writeCtx, msg)
}

// Close closes the writer. Safe on a nil sink.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// Message builds the Kafka message for rec.
func Message(rec Record) (kafka.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.TenantID),
		Value: payload,
		Time:  rec.LastErrorAt,
		Headers: []kafka.Header{
			{Key: "stream", Value: []byte(rec.Stream)},
			{Key: "event_type", Value: []byte(rec.EventType)},
		},
	}, nil
}
