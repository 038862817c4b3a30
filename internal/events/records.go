package events

import (
	"time"

	"github.com/google/uuid"
)

// FeatureContribution is one entry of a Scorer's topK explanation: the named
// feature and its signed contribution to the score, rounded to 4 decimals.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// RiskScore is one append-only scoring result for a user. Many rows accrue
// per user over time; there is no update-in-place.
type RiskScore struct {
	ID           int64
	UserID       string
	Score        float64
	Band         Band
	ComputedAt   time.Time
	TopFeatures  []FeatureContribution
	ModelVersion string
}

// ProcessedMarker records that the Worker has taken terminal responsibility
// for an event. Its presence, keyed on EventID, is the dedup mechanism that
// makes replayed or duplicate-delivered messages a no-op.
type ProcessedMarker struct {
	EventID     uuid.UUID
	ProcessedAt time.Time
	Status      ProcessedStatus
}

// DLQEntry is a terminally-failed event parked for manual inspection or
// replay. EventID is nullable: a message that failed to parse as an Event at
// all still lands here, with RawPayload carrying whatever bytes were read.
type DLQEntry struct {
	ID            int64
	EventID       *uuid.UUID
	RawPayload    string
	FailureReason string
	CreatedAt     time.Time
	RetryCount    int
}

// ModelVersion fingerprints a scoring artifact the first time any worker
// instance loads it, so a RiskScore's ModelVersion is always resolvable
// against a recorded metadata blob.
type ModelVersion struct {
	ModelVersion string
	CreatedAt    time.Time
	ParamsHash   string
	MetadataJSON string
}
