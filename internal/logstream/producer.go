// Package logstream wraps the partitioned event log (segmentio/kafka-go)
// that sits between event ingestion and the scoring worker: one topic, keyed
// by user_id so a partition preserves per-user ordering, with manual offset
// commit on the consumer side so a message is only acknowledged after its
// terminal disposition is decided.
package logstream

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig configures the Producer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Producer publishes validated events to the partitioned log. The message
// key is the event's user_id, guaranteeing per-user ordering within a
// partition; the value is the caller-supplied canonical envelope bytes.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer constructs a Producer bound to a single topic.
func NewProducer(cfg ProducerConfig) *Producer {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{}, // key-based partitioning: same user_id -> same partition
			WriteTimeout: writeTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes a single message keyed by userID. The caller is expected to
// call MarkPublished only after Publish returns nil: at-least-once delivery,
// acknowledged before the event row is flagged published.
func (p *Producer) Publish(ctx context.Context, userID string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("logstream: publish failed: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer. Safe to call once.
func (p *Producer) Close() error {
	return p.writer.Close()
}
