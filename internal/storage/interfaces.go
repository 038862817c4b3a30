package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

// EventStore is the surface the Ingest Handler uses: it writes events and
// reads them back by ID, and never reads scores or the DLQ.
type EventStore interface {
	// InsertEventIfAbsent atomically inserts evt keyed on EventID. inserted
	// is false, with no error, when an event with that ID already exists;
	// the caller should then fetch it to check PublishedAt.
	InsertEventIfAbsent(ctx context.Context, evt *events.Event) (inserted bool, err error)
	// MarkPublished idempotently records that evt was published. Calling it
	// on an already-published event is a no-op.
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	// GetEvent fetches a single event by ID, or ErrNotFound.
	GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error)
}

// WorkerStore is the surface the scoring Worker uses: processed markers,
// score history, the dead-letter queue, model version receipts, and event
// lookup by ID.
type WorkerStore interface {
	// IsProcessed reports whether eventID already has a processed marker.
	// It is an optimization only, not authoritative: a race can still slip
	// a duplicate past this check, which is why AppendScoreAndMarkProcessed
	// re-verifies atomically before writing a score.
	IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	// InsertProcessedIfAbsent atomically claims terminal responsibility for
	// eventID. inserted is false when another worker already claimed it —
	// the caller must not score the event again.
	InsertProcessedIfAbsent(
		ctx context.Context,
		eventID uuid.UUID,
		status events.ProcessedStatus,
	) (inserted bool, err error)
	// AppendScoreAndMarkProcessed writes score and the processed marker in
	// one transaction: the scoring path's only co-atomic write. inserted
	// reports whether this call won the processed-marker race; when false,
	// score was NOT written and the caller must discard it.
	AppendScoreAndMarkProcessed(
		ctx context.Context,
		score *events.RiskScore,
		eventID uuid.UUID,
	) (inserted bool, err error)
	// AppendDLQ parks a terminally-failed event for inspection or replay.
	AppendDLQ(ctx context.Context, entry *events.DLQEntry) error
	// InsertModelVersionIfAbsent records the first worker sighting of a
	// scoring artifact, keyed on ModelVersion. A no-op on a known version.
	InsertModelVersionIfAbsent(ctx context.Context, mv *events.ModelVersion) error
	// GetEvent fetches a single event by ID, or ErrNotFound.
	GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error)
}

// QueryStore is the read-only surface the API's score and DLQ endpoints use.
type QueryStore interface {
	LatestScore(ctx context.Context, userID string) (*events.RiskScore, error)
	ScoreHistory(ctx context.Context, userID string, limit int) ([]*events.RiskScore, error)
	DLQList(ctx context.Context, limit, offset int) ([]*events.DLQEntry, error)
	DLQGet(ctx context.Context, id int64) (*events.DLQEntry, error)
}
