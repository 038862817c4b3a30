// Package scoring implements the pluggable Scorer contract: a deterministic
// hash-seeded fallback always available, and a parametric logistic-regression
// model loaded from an artifact directory when one is configured.
package scoring

import (
	"context"
	"math"
	"sort"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/features"
)

// Prediction is a Scorer's full output for one feature vector.
type Prediction struct {
	Score        float64
	Band         events.Band
	TopFeatures  []events.FeatureContribution
	ModelVersion string
}

// Scorer turns a feature vector into a risk assessment. userID and eventType
// are passed through for scorers (like the fallback) whose output depends on
// more than the feature vector alone.
type Scorer interface {
	Predict(ctx context.Context, userID string, eventType events.Type, v features.Vector) (Prediction, error)
}

// topK returns the up-to-3 entries of contributions with the largest
// absolute value, sorted descending by |contribution|, rounded to 4
// decimals — the shared shape both Scorer implementations produce.
func topK(contributions map[string]float64, k int) []events.FeatureContribution {
	out := make([]events.FeatureContribution, 0, len(contributions))

	for name, c := range contributions {
		out = append(out, events.FeatureContribution{Feature: name, Contribution: round4(c)})
	}

	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})

	if len(out) > k {
		out = out[:k]
	}

	return out
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
