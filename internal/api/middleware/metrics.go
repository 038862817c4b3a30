package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/metrics"
)

// Metrics records HTTP_REQUEST_DURATION and HTTP_REQUESTS_TOTAL for every
// request, labeled by method, normalized path, and response status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			endpoint := metrics.NormalizePath(r.URL.Path)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
		})
	}
}

// WithMetrics returns an option that adds HTTP metrics middleware.
func WithMetrics() Option {
	return func(next http.Handler) http.Handler {
		return Metrics()(next)
	}
}
