package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

func TestClassify_ConnectionErrorIsTransient(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		err  error
	}{
		{name: "pq connection_exception", err: &pq.Error{Code: "08000"}},
		{name: "pq connection_failure", err: &pq.Error{Code: "08006"}},
		{name: "sql.ErrConnDone", err: sql.ErrConnDone},
		{name: "driver.ErrBadConn", err: driver.ErrBadConn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, ErrTransient) {
				t.Errorf("classify(%v) = %v, want ErrTransient", tt.err, got)
			}
		})
	}
}

func TestClassify_SerializationFailureIsTransient(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	got := classify(&pq.Error{Code: "40001"}) // serialization_failure
	if !errors.Is(got, ErrTransient) {
		t.Errorf("classify(serialization_failure) = %v, want ErrTransient", got)
	}
}

func TestClassify_ConstraintViolationIsFatal(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	got := classify(&pq.Error{Code: "23505"}) // unique_violation
	if !errors.Is(got, ErrFatal) {
		t.Errorf("classify(unique_violation) = %v, want ErrFatal", got)
	}
}

func TestClassify_NilIsNil(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := classify(nil); got != nil {
		t.Errorf("classify(nil) = %v, want nil", got)
	}
}

func TestMarshalUnmarshalPayload_TransactionRoundTrip(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	evt := &events.Event{
		EventType:   events.TypeTransaction,
		Transaction: &events.TransactionPayload{Amount: 42.5, Currency: "USD", Merchant: "m", Country: "US"},
	}

	raw, err := marshalPayload(evt)
	if err != nil {
		t.Fatalf("marshalPayload() failed: %v", err)
	}

	got := &events.Event{EventType: events.TypeTransaction}
	if err := unmarshalPayload(got, raw); err != nil {
		t.Fatalf("unmarshalPayload() failed: %v", err)
	}

	if *got.Transaction != *evt.Transaction {
		t.Errorf("round-tripped payload = %+v, want %+v", got.Transaction, evt.Transaction)
	}
}

func TestMarshalPayload_UnknownTypeRejected(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if _, err := marshalPayload(&events.Event{EventType: "bogus"}); err == nil {
		t.Fatal("marshalPayload() accepted an unknown event type")
	}
}
