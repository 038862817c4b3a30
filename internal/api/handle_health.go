package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth reports liveness only: if the process can answer, it's up.
// It does not probe the database, the log, or any other dependency —
// readiness is a separate concern this pipeline leaves to its orchestrator's
// own dependency checks.
//
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Duration(0)
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}

	writeJSON(w, r, s.logger, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: uptime.Round(time.Second).String(),
	})
}
