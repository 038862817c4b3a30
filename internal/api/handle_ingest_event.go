package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/api/middleware"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/metrics"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

// maxIngestBodyBytes bounds the request body the ingest endpoint will read,
// guarding against unbounded allocation from a hostile or buggy client.
const maxIngestBodyBytes = 1 << 20 // 1 MiB

type ingestResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// handleIngestEvent implements the accept/dedupe/publish algorithm: validate
// the payload, insert it if new, publish to the log, and mark it published —
// with a duplicate POST transparently retrying publication if the first
// attempt's publish never landed.
//
// POST /events - accepts exactly one event envelope per request.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := middleware.GetCorrelationID(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBodyBytes+1))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("failed to read request body"))

		return
	}

	if len(raw) > maxIngestBodyBytes {
		WriteErrorResponse(w, r, s.logger, BadRequest("request body too large"))

		return
	}

	event, err := s.validator.Validate(raw)
	if err != nil {
		metrics.EventsIngestedTotal.WithLabelValues("unknown", "invalid").Inc()
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	payloadMap, err := events.DecodeToMap(raw)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("failed to parse payload for hashing"))

		return
	}

	canonical := events.Canonicalize(payloadMap)
	event.RawPayloadHash = events.Hash(canonical)
	event.AcceptedAt = time.Now().UTC()

	if err := s.acceptEvent(r.Context(), event, canonical); err != nil {
		s.logger.Error("failed to accept event",
			slog.String("correlation_id", correlationID),
			slog.String("event_id", event.EventID.String()),
			slog.String("error", err.Error()))
		metrics.EventsIngestedTotal.WithLabelValues(string(event.EventType), "error").Inc()
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to accept event"))

		return
	}

	metrics.EventsIngestedTotal.WithLabelValues(string(event.EventType), "accepted").Inc()

	writeJSON(w, r, s.logger, http.StatusAccepted, ingestResponse{
		EventID: event.EventID.String(),
		Status:  "accepted",
	})

	s.logger.Info("event accepted",
		slog.String("correlation_id", correlationID),
		slog.String("event_id", event.EventID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.Duration("duration", time.Since(start)))
}

// acceptEvent implements §4.6's insert/publish/mark-published sequence: on a
// fresh insert it publishes and marks; on a duplicate it retries publication
// only if the existing row was never successfully published.
func (s *Server) acceptEvent(ctx context.Context, event *events.Event, raw []byte) error {
	inserted, err := s.eventStore.InsertEventIfAbsent(ctx, event)
	if err != nil {
		return err
	}

	if inserted {
		return s.publishAndMark(ctx, event, raw)
	}

	existing, err := s.eventStore.GetEvent(ctx, event.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Lost a race with a concurrent insert that hasn't committed
			// yet; nothing more to do here, the other request owns it.
			return nil
		}

		return err
	}

	if existing.PublishedAt != nil {
		return nil
	}

	return s.publishAndMark(ctx, event, raw)
}

// publishAndMark publishes the event's canonical envelope to the log and
// marks it published on success. A publish failure is not surfaced to the
// HTTP caller: the row stays durable with published_at unset and the next
// duplicate delivery (or an operational retry job) will retry it.
func (s *Server) publishAndMark(ctx context.Context, event *events.Event, raw []byte) error {
	if err := s.producer.Publish(ctx, event.UserID, raw); err != nil {
		s.logger.Warn("publish failed, event remains unpublished for retry",
			slog.String("event_id", event.EventID.String()), slog.String("error", err.Error()))
		metrics.EventsPublishedTotal.WithLabelValues("failed").Inc()

		return nil
	}

	metrics.EventsPublishedTotal.WithLabelValues("success").Inc()

	return s.eventStore.MarkPublished(ctx, event.EventID, time.Now().UTC())
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		WriteErrorResponse(w, r, logger, InternalServerError("failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}
