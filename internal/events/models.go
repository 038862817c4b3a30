// Package events defines the tagged-variant event schema shared by the ingest
// handler, the log producer, and the scoring worker: the envelope, its three
// payload kinds, and the errors a decoder can return.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the payload carried by an Envelope.
type Type string

// Event type discriminators, matching the wire contract's event_type field.
const (
	TypeSignup      Type = "signup"
	TypeLogin       Type = "login"
	TypeTransaction Type = "transaction"
)

// ProcessedStatus is the terminal disposition a Worker records for an event.
type ProcessedStatus string

// Processed marker statuses.
const (
	StatusSuccess ProcessedStatus = "SUCCESS"
	StatusFailed  ProcessedStatus = "FAILED"
	StatusSkipped ProcessedStatus = "SKIPPED"
)

// Band is the categorical risk bucket assigned to a score.
type Band string

// Risk bands.
const (
	BandLow    Band = "low"
	BandMedium Band = "med"
	BandHigh   Band = "high"
)

// Band threshold policy: LOW if score < 0.33; MED if < 0.66; else HIGH.
// Boundaries are left-closed.
const (
	DefaultLowMax = 0.33
	DefaultMedMax = 0.66
)

// BandOf classifies score under the default threshold policy.
func BandOf(score float64) Band {
	return bandOf(score, DefaultLowMax, DefaultMedMax)
}

// BandOfThresholds classifies score under an explicit threshold pair, used by
// Scorer implementations that load thresholds from a model artifact.
func BandOfThresholds(score, lowMax, medMax float64) Band {
	return bandOf(score, lowMax, medMax)
}

func bandOf(score, lowMax, medMax float64) Band {
	switch {
	case score < lowMax:
		return BandLow
	case score < medMax:
		return BandMedium
	default:
		return BandHigh
	}
}

// CurrentSchemaVersion is the schema_version emitted for newly validated events.
const CurrentSchemaVersion = 1

// SignupPayload is the type-specific body of a TypeSignup event.
type SignupPayload struct {
	EmailDomain string `json:"email_domain"`
	Country     string `json:"country"`
	DeviceID    string `json:"device_id"`
}

// LoginPayload is the type-specific body of a TypeLogin event.
type LoginPayload struct {
	IP       string `json:"ip"`
	Success  bool   `json:"success"`
	DeviceID string `json:"device_id"`
}

// TransactionPayload is the type-specific body of a TypeTransaction event.
type TransactionPayload struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Merchant string  `json:"merchant"`
	Country  string  `json:"country"`
}

// Event is the validated, decoded domain representation of an ingress event.
// It is the pure domain model: no JSON tags are load-bearing for persistence,
// the Store and the Log wire format each map it independently.
type Event struct {
	EventID         uuid.UUID
	UserID          string
	EventType       Type
	Timestamp       time.Time
	SchemaVersion   int
	Signup          *SignupPayload
	Login           *LoginPayload
	Transaction     *TransactionPayload
	RawPayloadHash  string
	AcceptedAt      time.Time
	PublishedAt     *time.Time
}

// Country returns the payload's country field for the event types that carry
// one (signup, transaction), and ok=false for login events.
func (e *Event) Country() (string, bool) {
	switch e.EventType {
	case TypeSignup:
		return e.Signup.Country, true
	case TypeTransaction:
		return e.Transaction.Country, true
	case TypeLogin:
		return "", false
	default:
		return "", false
	}
}
