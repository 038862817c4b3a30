// Package api provides the HTTP ingest and query surface for the risk-scoring service.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/api/middleware"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/logstream"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

// Server represents the HTTP ingest and query API server.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	eventStore  storage.EventStore
	queryStore  storage.QueryStore
	producer    *logstream.Producer
	rateLimiter middleware.RateLimiter
	validator   *events.Validator
}

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Parameters:
//   - cfg: pure server configuration (ports, timeouts, CORS settings)
//   - eventStore: durable event persistence (REQUIRED — panics if nil)
//   - queryStore: score and DLQ read surface (REQUIRED — panics if nil)
//   - producer: the partitioned log's publish side (REQUIRED — panics if nil)
//   - rateLimiter: rate limiter implementation (nil disables rate limiting)
func NewServer(
	cfg *ServerConfig,
	eventStore storage.EventStore,
	queryStore storage.QueryStore,
	producer *logstream.Producer,
	rateLimiter middleware.RateLimiter,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if eventStore == nil || queryStore == nil || producer == nil {
		logger.Error("event store, query store, and producer are required to start the server")
		panic("api: eventStore, queryStore, and producer cannot be nil")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		eventStore:  eventStore,
		queryStore:  queryStore,
		producer:    producer,
		rateLimiter: rateLimiter,
		validator:   events.NewValidator(),
	}

	server.setupRoutes(mux)

	if rateLimiter != nil {
		logger.Info("Rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream handlers
	//   3. RateLimit - block requests before expensive operations (optional)
	//   4. Metrics - observe latency and status for every request
	//   5. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithMetrics(),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// server fails to start.
func (s *Server) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting risk-scoring API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed", slog.String("error", err.Error()))

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeDependency("log producer", s.producer)
	s.closeDependency("event store", s.eventStore)

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

// closeDependency attempts to close a server dependency that implements
// io.Closer. Errors are logged but don't stop shutdown (best-effort).
func (s *Server) closeDependency(name string, dep any) {
	if dep == nil {
		return
	}

	closer, ok := dep.(io.Closer)
	if !ok {
		return
	}

	s.logger.Info("Closing " + name)

	if err := closer.Close(); err != nil {
		s.logger.Error("Failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info(name + " closed successfully")
}
