package logstream

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ReaderConfig configures the Reader.
type ReaderConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// Message is the subset of a fetched log record the Worker needs: the raw
// envelope bytes plus enough to commit the offset once processing is done.
type Message struct {
	Value []byte
	raw   kafka.Message
}

// Reader consumes from the partitioned log with manual offset commit: a
// message is fetched via Fetch, processed, and only acknowledged by a
// subsequent Commit call once its terminal disposition (scored, skipped, or
// DLQ'd) is known. This is segmentio/kafka-go's FetchMessage/CommitMessages
// pair, not the auto-committing ReadMessage.
type Reader struct {
	reader *kafka.Reader
}

// NewReader constructs a Reader bound to a single topic and consumer group.
func NewReader(cfg ReaderConfig) *Reader {
	return &Reader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		}),
	}
}

// Fetch blocks until a message is available or ctx is cancelled. The
// returned Message must be passed to Commit exactly once, after its
// disposition is terminal.
func (r *Reader) Fetch(ctx context.Context) (Message, error) {
	m, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}

	return Message{Value: m.Value, raw: m}, nil
}

// Commit acknowledges msg, advancing the consumer group's committed offset.
// It deliberately takes context.Background() semantics at the call site are
// the caller's choice — the Worker always commits with an uncancellable
// context so a graceful shutdown signal can't interrupt an in-flight commit
// and cause a processed message to be redelivered.
func (r *Reader) Commit(ctx context.Context, msg Message) error {
	return r.reader.CommitMessages(ctx, msg.raw)
}

// Close closes the underlying reader. Safe to call once.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// LagStats is the subset of kafka.Reader.Stats() the worker samples to
// report consumer lag: how far the last commit trails the partition's
// latest offset.
type LagStats struct {
	Topic     string
	Partition string
	Lag       int64
}

// Stats reports the reader's current lag against its assigned partition.
func (r *Reader) Stats() LagStats {
	s := r.reader.Stats()

	return LagStats{Topic: s.Topic, Partition: s.Partition, Lag: s.Lag}
}
