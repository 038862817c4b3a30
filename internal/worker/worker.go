// Package worker implements the asynchronous scoring consumer: it reads
// validated events off the partitioned log, computes a risk score, and
// persists it with idempotency and retry/DLQ semantics so that at-least-once
// delivery from the log never produces more than one score per event.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/config"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/features"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/logstream"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/metrics"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/scoring"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

// Disposition labels for worker_messages_consumed_total.
const (
	dispositionSuccess = "success"
	dispositionFailed  = "failed"
	dispositionSkipped = "skipped"
	dispositionDLQ     = "dlq"
)

// Worker consumes events from a Reader, scores them, and persists results
// through a WorkerStore, retrying any failure not classified as fatal and
// diverting anything it cannot eventually process to the dead letter queue.
type Worker struct {
	reader    *logstream.Reader
	store     storage.WorkerStore
	features  features.Reader
	validator *events.Validator
	scorer    scoring.Scorer
	policy    RetryPolicy
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Worker at construction time.
type Option func(*Worker)

// WithRetryPolicy overrides the default exponential backoff schedule.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(w *Worker) { w.policy = p }
}

// WithLogger overrides the default stdout JSON logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New constructs a Worker. featureReader supplies the event history that
// feature extraction reads; it is passed separately from store.
func New(
	reader *logstream.Reader,
	store storage.WorkerStore,
	featureReader features.Reader,
	scorer scoring.Scorer,
	opts ...Option,
) *Worker {
	w := &Worker{
		reader:    reader,
		store:     store,
		features:  featureReader,
		validator: events.NewValidator(),
		scorer:    scorer,
		policy:    DefaultRetryPolicy,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run consumes until ctx is cancelled, processing one message at a time.
// A message is only committed once its disposition is terminal (scored,
// skipped as a duplicate, or sent to the dead letter queue); committing uses
// an uncancellable context so a shutdown signal mid-commit can never leave a
// fully-processed message uncommitted and subject to redelivery.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.reader.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}

		start := time.Now()
		disposition := w.processWithRetries(ctx, msg.Value)
		metrics.WorkerProcessingDuration.WithLabelValues().Observe(time.Since(start).Seconds())
		metrics.WorkerMessagesConsumedTotal.WithLabelValues(disposition).Inc()

		if disposition == dispositionFailed {
			// Shutdown interrupted a retry backoff before a terminal
			// disposition: leave the message uncommitted for redelivery.
			return nil
		}

		if err := w.reader.Commit(context.Background(), msg); err != nil {
			w.logger.Error("commit failed", slog.String("error", err.Error()))
		}

		w.sampleLag()
	}
}

// sampleLag publishes the reader's current lag against its assigned
// partition. Best-effort: a partition not yet assigned reports a zero
// LagStats, which is harmless to publish.
func (w *Worker) sampleLag() {
	stats := w.reader.Stats()
	metrics.WorkerConsumerLag.WithLabelValues(stats.Topic, stats.Partition).Set(float64(stats.Lag))
}

// processWithRetries drives one message to a terminal disposition: scored,
// skipped, or DLQ'd. The one non-terminal outcome is "failed", returned when
// ctx is cancelled during a retry backoff; the message is then left neither
// scored nor dead-lettered.
func (w *Worker) processWithRetries(ctx context.Context, raw []byte) string {
	event, err := w.validator.Validate(raw)
	if err != nil {
		w.sendToDLQ(ctx, nil, raw, "schema validation failed: "+err.Error(), 0)
		return dispositionDLQ
	}

	if done, err := w.store.IsProcessed(ctx, event.EventID); err == nil && done {
		w.logger.Info("event already processed, skipping", slog.String("event_id", event.EventID.String()))
		return dispositionSkipped
	}

	for attempt := 0; ; attempt++ {
		disposition, err := w.scoreOnce(ctx, event)
		if err == nil {
			return disposition
		}

		if errors.Is(err, storage.ErrFatal) {
			w.logger.Error("non-retryable scoring failure",
				slog.String("event_id", event.EventID.String()), slog.String("error", err.Error()))
			w.markFailedAndDLQ(ctx, event, raw, err.Error(), attempt)

			return dispositionDLQ
		}

		if !w.policy.ShouldRetry(attempt) {
			w.logger.Error("max retries exceeded",
				slog.String("event_id", event.EventID.String()), slog.Int("attempts", attempt+1))
			w.markFailedAndDLQ(ctx, event, raw, "max retries exceeded: "+err.Error(), attempt)

			return dispositionDLQ
		}

		delay := w.policy.BackoffFor(attempt)
		w.logger.Warn("retrying after transient failure",
			slog.String("event_id", event.EventID.String()), slog.Int("attempt", attempt+1), slog.Duration("delay", delay))
		metrics.WorkerRetryTotal.WithLabelValues(strconv.Itoa(attempt + 1)).Inc()

		select {
		case <-ctx.Done():
			return dispositionFailed
		case <-time.After(delay):
		}
	}
}

// scoreOnce extracts features, scores, and persists — the single attempt a
// retry loop repeats on transient failure. The returned disposition is only
// meaningful when err is nil.
func (w *Worker) scoreOnce(ctx context.Context, event *events.Event) (string, error) {
	vector, err := features.Extract(ctx, w.features, event.UserID, w.now())
	if err != nil {
		return "", err
	}

	prediction, err := w.scorer.Predict(ctx, event.UserID, event.EventType, vector)
	if err != nil {
		return "", err
	}

	score := &events.RiskScore{
		UserID:       event.UserID,
		Score:        prediction.Score,
		Band:         prediction.Band,
		ComputedAt:   w.now(),
		TopFeatures:  prediction.TopFeatures,
		ModelVersion: prediction.ModelVersion,
	}

	inserted, err := w.store.AppendScoreAndMarkProcessed(ctx, score, event.EventID)
	if err != nil {
		return "", err
	}

	if !inserted {
		w.logger.Info("event already processed by another worker, skipping",
			slog.String("event_id", event.EventID.String()))

		return dispositionSkipped, nil
	}

	w.logger.Info("scored event",
		slog.String("event_id", event.EventID.String()),
		slog.String("user_id", event.UserID),
		slog.Float64("score", score.Score),
		slog.String("band", string(score.Band)))

	return dispositionSuccess, nil
}

// markFailedAndDLQ records a terminal failure: the raw payload goes to the
// dead letter queue and, since the event decoded successfully, a FAILED
// processed marker guards against a later replay re-attempting it.
func (w *Worker) markFailedAndDLQ(ctx context.Context, event *events.Event, raw []byte, reason string, retryCount int) {
	eventID := event.EventID
	w.sendToDLQ(ctx, &eventID, raw, reason, retryCount)

	if _, err := w.store.InsertProcessedIfAbsent(ctx, eventID, events.StatusFailed); err != nil {
		w.logger.Error("failed to record processed marker for DLQ'd event",
			slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
	}
}

func (w *Worker) sendToDLQ(ctx context.Context, eventID *uuid.UUID, raw []byte, reason string, retryCount int) {
	entry := &events.DLQEntry{
		EventID:       eventID,
		RawPayload:    strings.ToValidUTF8(string(raw), "�"),
		FailureReason: reason,
		RetryCount:    retryCount,
	}

	if err := w.store.AppendDLQ(ctx, entry); err != nil {
		w.logger.Error("failed to write dead letter entry",
			slog.String("reason", reason), slog.String("error", err.Error()))
	}

	metrics.DLQEntriesTotal.WithLabelValues(reason).Inc()
}
