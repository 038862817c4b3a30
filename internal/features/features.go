// Package features computes the fixed-order rolling-window feature vector a
// Scorer consumes. It operates purely on an Events abstraction supplied by
// the caller (the Store, inside a read transaction) — it has no database
// handle of its own; business logic never opens a connection itself.
package features

import (
	"context"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

// Order is the feature vector's contractual, stable ordering. Changing it is
// a breaking change requiring model retraining, since a Scorer's weights are
// indexed positionally against it.
var Order = [6]string{
	"txn_count_24h",
	"txn_amount_sum_24h",
	"failed_logins_1h",
	"account_age_days",
	"unique_countries_7d",
	"avg_txn_amount_30d",
}

// Defaults mirrors Order: the value substituted when a user has no events in
// a given window.
var Defaults = map[string]float64{
	"txn_count_24h":       0,
	"txn_amount_sum_24h":  0,
	"failed_logins_1h":    0,
	"account_age_days":    0,
	"unique_countries_7d": 0,
	"avg_txn_amount_30d":  0,
}

// Vector is the computed feature values in Order's positional layout.
type Vector struct {
	TxnCount24h      float64
	TxnAmountSum24h  float64
	FailedLogins1h   float64
	AccountAgeDays   float64
	UniqueCountries7d float64
	AvgTxnAmount30d  float64
}

// AsSlice returns the vector in Order's positional layout, the shape a
// Scorer's weights are indexed against.
func (v Vector) AsSlice() []float64 {
	return []float64{
		v.TxnCount24h,
		v.TxnAmountSum24h,
		v.FailedLogins1h,
		v.AccountAgeDays,
		v.UniqueCountries7d,
		v.AvgTxnAmount30d,
	}
}

// Reader is the read-only view over an event history a Store provides so
// Extract never needs SQL of its own. Windows are half-open [start, asOf] on
// event Timestamp, evaluated in UTC.
type Reader interface {
	// TransactionsInWindow returns TRANSACTION events for userID with
	// Timestamp in [start, asOf].
	TransactionsInWindow(ctx context.Context, userID string, start, asOf time.Time) ([]*events.Event, error)
	// LoginsInWindow returns LOGIN events for userID with Timestamp in
	// [start, asOf].
	LoginsInWindow(ctx context.Context, userID string, start, asOf time.Time) ([]*events.Event, error)
	// SignupsAndTransactionsInWindow returns SIGNUP and TRANSACTION events
	// for userID with Timestamp in [start, asOf].
	SignupsAndTransactionsInWindow(ctx context.Context, userID string, start, asOf time.Time) ([]*events.Event, error)
	// FirstEventTimestamp returns the Timestamp of userID's earliest event,
	// and ok=false if the user has no events at all.
	FirstEventTimestamp(ctx context.Context, userID string) (time.Time, bool, error)
}

// Extract computes the feature vector for userID as of asOf, delegating all
// event retrieval to r so it can run inside the caller's transaction.
func Extract(ctx context.Context, r Reader, userID string, asOf time.Time) (Vector, error) {
	asOf = asOf.UTC()

	var v Vector

	txns24h, err := r.TransactionsInWindow(ctx, userID, asOf.Add(-24*time.Hour), asOf)
	if err != nil {
		return v, err
	}

	v.TxnCount24h = float64(len(txns24h))
	for _, e := range txns24h {
		if e.Transaction != nil {
			v.TxnAmountSum24h += e.Transaction.Amount
		}
	}

	logins1h, err := r.LoginsInWindow(ctx, userID, asOf.Add(-1*time.Hour), asOf)
	if err != nil {
		return v, err
	}

	for _, e := range logins1h {
		if e.Login != nil && !e.Login.Success {
			v.FailedLogins1h++
		}
	}

	first, ok, err := r.FirstEventTimestamp(ctx, userID)
	if err != nil {
		return v, err
	}

	if ok {
		age := asOf.Sub(first.UTC())
		days := age / (24 * time.Hour)

		if days < 0 {
			days = 0
		}

		v.AccountAgeDays = float64(days)
	}

	countryEvents, err := r.SignupsAndTransactionsInWindow(ctx, userID, asOf.Add(-7*24*time.Hour), asOf)
	if err != nil {
		return v, err
	}

	countries := make(map[string]struct{})

	for _, e := range countryEvents {
		if c, ok := e.Country(); ok && c != "" {
			countries[c] = struct{}{}
		}
	}

	v.UniqueCountries7d = float64(len(countries))

	txns30d, err := r.TransactionsInWindow(ctx, userID, asOf.Add(-30*24*time.Hour), asOf)
	if err != nil {
		return v, err
	}

	if len(txns30d) > 0 {
		var sum float64

		for _, e := range txns30d {
			if e.Transaction != nil {
				sum += e.Transaction.Amount
			}
		}

		v.AvgTxnAmount30d = sum / float64(len(txns30d))
	}

	return v, nil
}
