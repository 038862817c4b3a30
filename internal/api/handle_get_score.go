package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

type scoreResponse struct {
	UserID       string                   `json:"user_id"`
	Score        float64                  `json:"score"`
	Band         string                   `json:"band"`
	ComputedAt   string                   `json:"computed_at"`
	TopFeatures  []featureContributionDTO `json:"top_features"`
	ModelVersion string                   `json:"model_version"`
}

type featureContributionDTO struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

func scoreDTO(score *events.RiskScore) scoreResponse {
	topFeatures := make([]featureContributionDTO, len(score.TopFeatures))
	for i, f := range score.TopFeatures {
		topFeatures[i] = featureContributionDTO{Feature: f.Feature, Contribution: f.Contribution}
	}

	return scoreResponse{
		UserID:       score.UserID,
		Score:        score.Score,
		Band:         string(score.Band),
		ComputedAt:   score.ComputedAt.UTC().Format(time.RFC3339),
		TopFeatures:  topFeatures,
		ModelVersion: score.ModelVersion,
	}
}

// handleGetScore returns the most recent risk score for a user.
//
// GET /score/{user_id}
func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("user_id is required"))

		return
	}

	score, err := s.queryStore.LatestScore(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("no score found for this user"))

			return
		}

		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to fetch score"))

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, scoreDTO(score))
}
