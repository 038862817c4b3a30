package scoring

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/features"
)

// Fallback is the always-available Scorer used when no parametric model
// artifact is resolvable. It is deterministic: the same user_id always
// produces the same score, seeded by an FNV-1a hash of the user_id rather
// than anything time-based, so repeated scoring of a duplicate-delivered
// message before its processed marker lands doesn't disagree with itself.
type Fallback struct{}

// NewFallback constructs a Fallback scorer.
func NewFallback() *Fallback {
	return &Fallback{}
}

var _ Scorer = (*Fallback)(nil)

// Predict implements Scorer.
func (f *Fallback) Predict(
	_ context.Context, userID string, eventType events.Type, _ features.Vector,
) (Prediction, error) {
	rng := rand.New(rand.NewSource(seedFor(userID))) //nolint:gosec // reproducible fallback, not cryptographic

	score := 0.1 + rng.Float64()*0.4 // base_score in [0.1, 0.5)

	switch eventType {
	case events.TypeTransaction:
		score += rng.Float64() * 0.3
	case events.TypeLogin:
		score += rng.Float64() * 0.1
	case events.TypeSignup:
		// signup events carry no event-type weighting
	}

	if score > 1.0 {
		score = 1.0
	}

	if score < 0.0 {
		score = 0.0
	}

	contributions := make(map[string]float64, len(features.Order))
	for _, name := range features.Order {
		contributions[name] = rng.Float64()*0.3 - 0.1 // uniform(-0.1, 0.2)
	}

	return Prediction{
		Score:        score,
		Band:         events.BandOf(score),
		TopFeatures:  topK(contributions, 3),
		ModelVersion: "fallback-v1",
	}, nil
}

func seedFor(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID)) // hash.Hash.Write never returns an error

	return int64(h.Sum64() & 0x7fffffff) //nolint:gosec // truncation is intentional, bounds the seed to a positive int32 range
}
