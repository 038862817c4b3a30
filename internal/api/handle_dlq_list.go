package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

const (
	defaultDLQLimit = 50
	maxDLQLimit     = 500
)

type dlqEntryResponse struct {
	ID            int64  `json:"id"`
	EventID       string `json:"event_id,omitempty"`
	RawPayload    string `json:"raw_payload"`
	FailureReason string `json:"failure_reason"`
	CreatedAt     string `json:"created_at"`
	RetryCount    int    `json:"retry_count"`
}

func dlqDTO(entry *events.DLQEntry) dlqEntryResponse {
	resp := dlqEntryResponse{
		ID:            entry.ID,
		RawPayload:    entry.RawPayload,
		FailureReason: entry.FailureReason,
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
		RetryCount:    entry.RetryCount,
	}

	if entry.EventID != nil {
		resp.EventID = entry.EventID.String()
	}

	return resp
}

// handleDLQList returns a paginated view of the dead letter queue.
//
// GET /dlq?limit=N&offset=M
func (s *Server) handleDLQList(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultDLQLimit, maxDLQLimit)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	offset := 0

	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorResponse(w, r, s.logger, BadRequest("offset must be a non-negative integer"))

			return
		}

		offset = n
	}

	entries, err := s.queryStore.DLQList(r.Context(), limit, offset)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to fetch dead letter queue"))

		return
	}

	out := make([]dlqEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = dlqDTO(entry)
	}

	writeJSON(w, r, s.logger, http.StatusOK, out)
}
