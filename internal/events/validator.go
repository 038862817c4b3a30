package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validator decodes and validates ingress event payloads. It is stateless and
// safe for concurrent use by multiple goroutines (HTTP handlers and worker
// instances can share one Validator).
type Validator struct{}

// NewValidator returns a ready-to-use Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// envelope mirrors the wire shape of an ingress event, before payload
// dispatch. Payload is kept as raw JSON until EventType selects which
// concrete payload struct to decode it into.
type envelope struct {
	EventID       string          `json:"event_id"`
	UserID        string          `json:"user_id"`
	EventType     string          `json:"event_type"`
	Timestamp     string          `json:"ts"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

const (
	minUserIDLen = 1
	maxUserIDLen = 255
	minIPLen     = 7
	maxIPLen     = 45
	isoCountryLen = 2
	isoCurrencyLen = 3
)

// Validate decodes raw JSON bytes into a validated Event. A field-level
// violation is returned as a *ValidationError. Undecodable JSON, including an
// unknown envelope field, is returned as an error wrapping ErrMalformedJSON,
// and an unrecognized event_type as one wrapping ErrUnknownEventType; those
// two are not *ValidationError values. Unknown fields are rejected at every
// level: the envelope and the type-specific payload.
func (v *Validator) Validate(raw []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedJSON, err.Error())
	}

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return nil, NewValidationError("event_id", "must be a valid UUID")
	}

	if l := len(env.UserID); l < minUserIDLen || l > maxUserIDLen {
		return nil, NewValidationError("user_id", "must be 1..255 characters")
	}

	if env.SchemaVersion < 1 {
		return nil, NewValidationError("schema_version", "must be >= 1")
	}

	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return nil, NewValidationError("ts", "must be ISO-8601 with Z or an explicit offset")
	}

	event := &Event{
		EventID:       eventID,
		UserID:        env.UserID,
		Timestamp:     ts,
		SchemaVersion: env.SchemaVersion,
	}

	switch Type(env.EventType) {
	case TypeSignup:
		payload, err := decodeSignup(env.Payload)
		if err != nil {
			return nil, err
		}

		event.EventType = TypeSignup
		event.Signup = payload
	case TypeLogin:
		payload, err := decodeLogin(env.Payload)
		if err != nil {
			return nil, err
		}

		event.EventType = TypeLogin
		event.Login = payload
	case TypeTransaction:
		payload, err := decodeTransaction(env.Payload)
		if err != nil {
			return nil, err
		}

		event.EventType = TypeTransaction
		event.Transaction = payload
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}

	return event, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return ts.UTC(), nil
}

func decodeSignup(raw json.RawMessage) (*SignupPayload, error) {
	var p SignupPayload
	if err := strictDecode(raw, &p); err != nil {
		return nil, err
	}

	if p.EmailDomain == "" {
		return nil, NewValidationError("payload.email_domain", "must not be empty")
	}

	if len(p.Country) != isoCountryLen {
		return nil, NewValidationError("payload.country", "must be an ISO-2 country code")
	}

	if p.DeviceID == "" {
		return nil, NewValidationError("payload.device_id", "must not be empty")
	}

	return &p, nil
}

func decodeLogin(raw json.RawMessage) (*LoginPayload, error) {
	var p LoginPayload
	if err := strictDecode(raw, &p); err != nil {
		return nil, err
	}

	if l := len(p.IP); l < minIPLen || l > maxIPLen {
		return nil, NewValidationError("payload.ip", "must be 7..45 characters")
	}

	if p.DeviceID == "" {
		return nil, NewValidationError("payload.device_id", "must not be empty")
	}

	return &p, nil
}

func decodeTransaction(raw json.RawMessage) (*TransactionPayload, error) {
	var p TransactionPayload
	if err := strictDecode(raw, &p); err != nil {
		return nil, err
	}

	if p.Amount <= 0 {
		return nil, NewValidationError("payload.amount", "must be positive")
	}

	if len(p.Currency) != isoCurrencyLen {
		return nil, NewValidationError("payload.currency", "must be an ISO-3 currency code")
	}

	if p.Merchant == "" {
		return nil, NewValidationError("payload.merchant", "must not be empty")
	}

	if len(p.Country) != isoCountryLen {
		return nil, NewValidationError("payload.country", "must be an ISO-2 country code")
	}

	return &p, nil
}

func strictDecode(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return NewValidationError("payload", err.Error())
	}

	return nil
}
