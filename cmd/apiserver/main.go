// Command apiserver runs the HTTP ingest and query surface for the
// risk-scoring pipeline: accepts events over POST /events, publishes them to
// the partitioned log, and serves score/DLQ lookups for operators.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/api"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/api/middleware"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/config"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/logstream"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
)

func main() {
	dbConfig := storage.LoadConfig()
	if err := dbConfig.Validate(); err != nil {
		log.Fatalf("invalid database configuration: %v", err)
	}

	conn, err := storage.NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() { _ = conn.Close() }()

	store, err := storage.NewPostgresStore(conn)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}

	producer := logstream.NewProducer(logstream.ProducerConfig{
		Brokers: config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", "localhost:9092")),
		Topic:   config.GetEnvStr("KAFKA_TOPIC", "risk.events"),
	})
	defer func() { _ = producer.Close() }()

	serverConfig := api.LoadServerConfig()

	var rateLimiter middleware.RateLimiter
	if serverConfig.RateLimitRPS > 0 {
		rateLimiter = middleware.NewInMemoryRateLimiter(middleware.RateLimitConfig{
			GlobalRPS: serverConfig.RateLimitRPS,
			ClientRPS: serverConfig.RateLimitRPS,
		})
	}

	server := api.NewServer(&serverConfig, store, store, producer, rateLimiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		slog.Error("api server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
