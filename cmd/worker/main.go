// Command worker consumes validated events from the partitioned log, scores
// each one, and persists the result with idempotent retry and dead-letter
// handling for events that can't be scored.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/config"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/logstream"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/metrics"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/scoring"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/storage"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/worker"
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

	brokers := config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", "localhost:9092"))

	reader := logstream.NewReader(logstream.ReaderConfig{
		Brokers:  brokers,
		Topic:    config.GetEnvStr("KAFKA_TOPIC", "risk.events"),
		GroupID:  config.GetEnvStr("CONSUMER_GROUP", "risk-scorer"),
		MinBytes: config.GetEnvInt("KAFKA_MIN_BYTES", 1),
		MaxBytes: config.GetEnvInt("KAFKA_MAX_BYTES", 10<<20),
	})
	defer func() { _ = reader.Close() }()

	// The core path never publishes here — an in-DB DLQ (dlq_events, see
	// internal/storage) is the system of record for failed events. This
	// writer exists so an external forwarder can be pointed at DLQ_TOPIC
	// without any change to the worker.
	dlqForwarder := logstream.NewProducer(logstream.ProducerConfig{
		Brokers: brokers,
		Topic:   config.GetEnvStr("DLQ_TOPIC", "risk.events.dlq"),
	})
	defer func() { _ = dlqForwarder.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scorer, err := loadScorer(ctx, store)
	if err != nil {
		log.Fatalf("failed to load scorer: %v", err)
	}

	w := worker.New(reader, store, store, scorer, worker.WithRetryPolicy(worker.LoadRetryPolicy()))

	metricsServer := startMetricsServer(config.GetEnvStr("WORKER_METRICS_PORT", "9100"))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := w.Run(ctx); err != nil {
		slog.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// startMetricsServer exposes GET /metrics on its own port, separate from
// the worker's consume loop, so Prometheus can scrape it without touching
// anything on the worker's hot path.
func startMetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

// loadScorer selects the parametric model when MODEL_PATH is set and the
// deterministic fallback scorer when it is not — keeping the worker runnable
// before a model has ever been trained. An artifact under MODEL_PATH that
// fails to load is returned as an error, not replaced by the fallback. The
// first time a parametric model loads, its fingerprint is recorded in
// model_versions so a RiskScore carrying that model_version is always
// resolvable against it.
func loadScorer(ctx context.Context, store storage.WorkerStore) (scoring.Scorer, error) {
	dir := config.GetEnvStr("MODEL_PATH", "")
	if dir == "" {
		return scoring.NewFallback(), nil
	}

	model, err := scoring.LoadModel(dir)
	if err != nil {
		return nil, err
	}

	metadataJSON, err := model.MetadataJSON()
	if err != nil {
		return nil, err
	}

	mv := &events.ModelVersion{
		ModelVersion: model.Version(),
		ParamsHash:   model.ParamsHash(),
		MetadataJSON: metadataJSON,
	}

	if err := store.InsertModelVersionIfAbsent(ctx, mv); err != nil {
		return nil, err
	}

	metrics.ActiveModelInfo.Reset()
	metrics.ActiveModelInfo.WithLabelValues(mv.ModelVersion, mv.ParamsHash).Set(1)

	return model, nil
}
