package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/civic-risk-service/internal/adapter"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/gemini"
	httpadapter "github.com/couchcryptid/civic-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/civic-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/openai"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/cache"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/copilot"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"github.com/couchcryptid/civic-risk-service/internal/pipeline"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		slog.Error("failed to load env files", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	collector := pipeline.NewCollector(adapter.Sources(adapter.NewClients(cfg, logger)), cfg.SourceTimeout, logger, metrics)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var (
		publisher pipeline.SnapshotPublisher
		writer    *kafkaadapter.Publisher
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewPublisher(cfg, logger)
		publisher = writer
		metrics.PublisherEnabled.Set(1)
		logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("snapshot publishing disabled")
	}
	agg := pipeline.NewAggregator(collector, cfg.Municipality.Name, publisher, logger, metrics)

	router := copilot.NewRouter(newModel(cfg, logger), copilot.Options{
		Timeout:    cfg.ModelTimeout,
		RPS:        cfg.ModelRPS,
		Burst:      cfg.ModelBurst,
		Production: cfg.Production(),
	}, logger, metrics)

	c := cache.New(
		cache.WithDefaultTTL(cfg.CacheTTL),
		cache.WithCoalescing(cfg.CacheCoalesce),
		cache.WithMetrics(metrics),
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, agg, c, router, httpadapter.Options{
		City:       cfg.Municipality.Name,
		Production: cfg.Production(),
		Features: httpadapter.Features{
			Model:      router.ModelConfigured(),
			BrightData: cfg.BrightDataAPIKey != "",
			Kafka:      cfg.KafkaEnabled,
		},
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newModel picks Gemini when its key is set, then OpenAI. It returns nil when
// neither is configured so every answer uses the templates.
func newModel(cfg *config.Config, logger *slog.Logger) copilot.Model {
	if !cfg.ModelConfigured() {
		logger.Info("copilot model disabled, answers use templates")
		return nil
	}
	if cfg.GeminiAPIKey != "" {
		logger.Info("copilot model enabled", "provider", "gemini", "model", cfg.GeminiModel)
		return gemini.NewClient(upstream.NewClient(cfg.ModelTimeout, logger), cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	logger.Info("copilot model enabled", "provider", "openai", "model", cfg.OpenAIModel)
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
}
