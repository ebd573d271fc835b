package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/medrag-io/medrag-go/internal/embedder"
	"github.com/medrag-io/medrag-go/internal/rag"
	"github.com/medrag-io/medrag-go/internal/store"
	"github.com/medrag-io/medrag-go/internal/telemetry"
)

// buildVectorStore connects to Qdrant using the environment-driven
// configuration. Vector dimensionality follows the selected embedding
// backend so the collection is created with the right size on first use.
func buildVectorStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "medrag-docs")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.ResolveBackend())) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, nil
}

// buildSink selects the telemetry sink. MLflow tracking is opt-in via
// MLFLOW_TRACKING_URI; without it every run is recorded to a no-op sink.
func buildSink(log *slog.Logger) (telemetry.Sink, error) {
	uri := os.Getenv("MLFLOW_TRACKING_URI")
	if uri == "" {
		log.Info("telemetry disabled", slog.String("reason", "MLFLOW_TRACKING_URI not set"))
		return telemetry.NoopSink{}, nil
	}

	sink, err := telemetry.NewMLflowSink(telemetry.MLflowConfig{
		BaseURL:    uri,
		Experiment: getEnvOrDefault("MLFLOW_EXPERIMENT", "medrag"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise MLflow sink: %w", err)
	}

	log.Info("mlflow telemetry enabled", slog.String("tracking_uri", uri))
	return sink, nil
}

// openHistory opens the run history store. MEDRAG_HISTORY_DB overrides the
// default path (~/.medrag/history.db); set it to "disabled" to skip
// persistence. Returns a nil store with a no-op closer when history is
// unavailable — history problems never block answering.
func openHistory(log *slog.Logger) (store.RunStore, func()) {
	noop := func() {}

	dbPath := os.Getenv("MEDRAG_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via MEDRAG_HISTORY_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// getEnvOrDefault returns the value of key if set and non-empty, otherwise fallback.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of key, or fallback when unset or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
