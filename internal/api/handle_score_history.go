package api

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	defaultScoreHistoryLimit = 20
	maxScoreHistoryLimit     = 200
)

// ErrInvalidLimit is returned when a limit query parameter isn't a positive
// integer within the endpoint's allowed range.
var ErrInvalidLimit = errors.New("limit must be a positive integer within range")

// handleScoreHistory returns a user's risk scores ordered most-recent-first.
//
// GET /score/{user_id}/history?limit=N
func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("user_id is required"))

		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultScoreHistoryLimit, maxScoreHistoryLimit)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	scores, err := s.queryStore.ScoreHistory(r.Context(), userID, limit)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to fetch score history"))

		return
	}

	out := make([]scoreResponse, len(scores))
	for i, score := range scores {
		out[i] = scoreDTO(score)
	}

	writeJSON(w, r, s.logger, http.StatusOK, out)
}

func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidLimit
	}

	if n <= 0 || n > max {
		return 0, ErrInvalidLimit
	}

	return n, nil
}
