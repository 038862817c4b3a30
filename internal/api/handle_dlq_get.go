package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

// handleDLQGet returns a single dead letter queue entry by ID.
//
// GET /dlq/{id}
func (s *Server) handleDLQGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("id must be an integer"))

		return
	}

	entry, err := s.queryStore.DLQGet(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("no dead letter entry with this id"))

			return
		}

		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to fetch dead letter entry"))

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, dlqDTO(entry))
}
