// Command analytics starts the standalone prediction analytics service.
//
// It consumes prediction events from Kafka, aggregates them in memory
// (query totals, fallback and no-data rates, latency percentiles, top
// countries and education levels), snapshots the aggregate to PostgreSQL when
// enabled, and exposes GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/hrdatainsights/salary-platform/internal/analytics"
	"github.com/hrdatainsights/salary-platform/internal/analytics/store"
	"github.com/hrdatainsights/salary-platform/pkg/config"
	"github.com/hrdatainsights/salary-platform/pkg/health"
	"github.com/hrdatainsights/salary-platform/pkg/kafka"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/middleware"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
)

// main boots the analytics service: a Kafka consumer feeding the in-memory
// aggregator, optional PostgreSQL snapshots, health probes and the HTTP API.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := cfg.Kafka.Topics.PredictionEvents
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
	defer consumer.Close()

	go func() {
		if err := aggregator.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", topic)

	checker := health.NewChecker()
	checker.Register("kafka", health.PingCheck(consumer.Ping, false))

	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		db, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		snapStore := store.New(db)
		if err := snapStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		if cfg.Analytics.SnapshotInterval > 0 {
			snapStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
		snapshots = snapStore
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	analyticsHandler := analytics.NewHandler(aggregator, snapshots)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Get("/api/v1/analytics", analyticsHandler.Stats)
	r.Get("/api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// must finish before the deferred closes run.
	<-shutdownDone

	slog.Info("analytics service stopped")
}
