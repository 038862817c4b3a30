package api

import (
	"net/http"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/metrics"
)

// setupRoutes registers the full HTTP surface: event ingest plus the
// read-only score, DLQ, health, and metrics endpoints.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", s.handleIngestEvent)
	mux.HandleFunc("GET /score/{user_id}", s.handleGetScore)
	mux.HandleFunc("GET /score/{user_id}/history", s.handleScoreHistory)
	mux.HandleFunc("GET /dlq", s.handleDLQList)
	mux.HandleFunc("GET /dlq/{id}", s.handleDLQGet)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
}
