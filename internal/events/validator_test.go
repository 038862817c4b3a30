package events

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidate_Signup(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	raw := []byte(`{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "signup",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"payload": {"email_domain": "ex.com", "country": "US", "device_id": "d1"}
	}`)

	event, err := v.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() failed for valid signup event: %v", err)
	}

	if event.EventType != TypeSignup {
		t.Errorf("EventType = %q, want %q", event.EventType, TypeSignup)
	}

	if event.Signup == nil || event.Signup.Country != "US" {
		t.Errorf("Signup payload not decoded correctly: %+v", event.Signup)
	}
}

func TestValidate_RejectsUnknownTopLevelField(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	raw := []byte(`{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "signup",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"unexpected": "nope",
		"payload": {"email_domain": "ex.com", "country": "US", "device_id": "d1"}
	}`)

	if _, err := v.Validate(raw); err == nil {
		t.Fatal("Validate() accepted an event with an unknown top-level field")
	}
}

func TestValidate_RejectsUnknownPayloadField(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	raw := []byte(`{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "signup",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"payload": {"email_domain": "ex.com", "country": "US", "device_id": "d1", "extra": "nope"}
	}`)

	if _, err := v.Validate(raw); err == nil {
		t.Fatal("Validate() accepted a payload with an unknown field")
	}
}

func TestValidate_UnknownEventType(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	raw := []byte(`{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "unknown",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"payload": {}
	}`)

	_, err := v.Validate(raw)
	if err == nil {
		t.Fatal("Validate() accepted an unknown event_type")
	}

	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("error = %v, want errors.Is(err, ErrUnknownEventType)", err)
	}
}

func TestValidate_TransactionBoundaries(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	base := `{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "transaction",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"payload": {"amount": %s, "currency": "%s", "merchant": "m", "country": "US"}
	}`

	tests := []struct {
		name    string
		amount  string
		ccy     string
		wantErr bool
	}{
		{name: "zero amount rejected", amount: "0", ccy: "USD", wantErr: true},
		{name: "negative amount rejected", amount: "-5", ccy: "USD", wantErr: true},
		{name: "positive amount accepted", amount: "5.50", ccy: "USD", wantErr: false},
		{name: "short currency rejected", amount: "5", ccy: "US", wantErr: true},
		{name: "long currency rejected", amount: "5", ccy: "USDD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(fmt.Sprintf(base, tt.amount, tt.ccy))

			_, err := v.Validate(raw)
			if tt.wantErr && err == nil {
				t.Errorf("Validate() accepted amount=%s currency=%s, want error", tt.amount, tt.ccy)
			}

			if !tt.wantErr && err != nil {
				t.Errorf("Validate() rejected amount=%s currency=%s: %v", tt.amount, tt.ccy, err)
			}
		})
	}
}

func TestValidate_MalformedEmailDomainRejected(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	v := NewValidator()

	raw := []byte(`{
		"event_id": "12345678-1234-1234-1234-123456789012",
		"user_id": "u1",
		"event_type": "signup",
		"ts": "2024-01-15T12:00:00Z",
		"schema_version": 1,
		"payload": {"email_domain": "", "country": "US", "device_id": "d1"}
	}`)

	if _, err := v.Validate(raw); err == nil {
		t.Fatal("Validate() accepted an empty email_domain")
	}
}
