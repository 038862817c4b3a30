// Package metrics defines the Prometheus instruments exposed by both the
// API server and the scoring worker, and the path-normalization helper that
// keeps HTTP label cardinality bounded.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}

var processingDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5}

// HTTPRequestDuration observes request latency by method, normalized
// endpoint, and response status.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_seconds",
	Help:    "HTTP request duration in seconds",
	Buckets: httpDurationBuckets,
}, []string{"method", "endpoint", "status"})

// HTTPRequestsTotal counts completed HTTP requests.
var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total HTTP requests",
}, []string{"method", "endpoint", "status"})

// EventsIngestedTotal counts events accepted or rejected at the ingest
// endpoint.
var EventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "events_ingested_total",
	Help: "Total events ingested via the HTTP API",
}, []string{"event_type", "status"})

// EventsPublishedTotal counts the ingest handler's attempts to publish an
// accepted event onto the partitioned log.
var EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "events_published_total",
	Help: "Total log publish attempts made by the ingest handler",
}, []string{"status"})

// WorkerMessagesConsumedTotal counts messages the worker reached a terminal
// disposition for: scored, permanently failed, skipped as a duplicate, or
// diverted to the dead letter queue.
var WorkerMessagesConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "worker_messages_consumed_total",
	Help: "Total messages consumed by the worker, by terminal disposition",
}, []string{"status"})

// WorkerProcessingDuration observes the time from fetching a message off
// the log to reaching its terminal disposition, including any retries.
var WorkerProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "worker_processing_duration_seconds",
	Help:    "Time to process one message to a terminal disposition",
	Buckets: processingDurationBuckets,
}, []string{})

// WorkerRetryTotal counts retry attempts by ordinal, so a climbing count at
// a high attempt number flags a scorer or store that's failing repeatedly.
var WorkerRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "worker_retry_total",
	Help: "Total retry attempts made by the worker",
}, []string{"attempt"})

// DLQEntriesTotal counts events parked in the dead letter queue.
var DLQEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dlq_entries_total",
	Help: "Total entries written to the dead letter queue",
}, []string{"reason"})

// WorkerConsumerLag reports the worker's distance from each partition's
// latest offset, sampled from the reader's fetch/commit watermark after
// every commit.
var WorkerConsumerLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "worker_consumer_lag",
	Help: "Consumer lag in messages behind the partition watermark",
}, []string{"topic", "partition"})

// ActiveModelInfo publishes the currently loaded scoring model's identity as
// a label set on an always-1 gauge — the usual Prometheus info pattern.
var ActiveModelInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "active_model_info",
	Help: "Currently loaded scoring model",
}, []string{"model_version", "params_hash"})

// Handler returns the Prometheus text-exposition HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NormalizePath collapses path segments that look like identifiers (UUIDs,
// numeric IDs, "user-"-prefixed IDs) into a fixed placeholder, so per-request label cardinality
// stays bounded regardless of how many distinct users or DLQ entries exist.
func NormalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	normalized := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		if looksLikeID(part) {
			normalized = append(normalized, "{id}")
		} else {
			normalized = append(normalized, part)
		}
	}

	if len(normalized) == 0 {
		return "/"
	}

	return "/" + strings.Join(normalized, "/")
}

func looksLikeID(part string) bool {
	if len(part) == 36 && strings.Count(part, "-") == 4 {
		return true
	}

	if _, err := strconv.ParseInt(part, 10, 64); err == nil {
		return true
	}

	if strings.HasPrefix(part, "user-") {
		return true
	}

	return false
}
