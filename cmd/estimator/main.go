// Command estimator serves salary lookups, predictions and dataset overviews.
//
// At startup it loads the model artifact and the historical survey table in
// parallel, builds the category encodings from the artifact, and refuses to
// start when either encoding lacks the "Other" fallback. It then serves the
// HTTP API, the internal RPC service, health probes and Prometheus metrics
// until SIGINT or SIGTERM.
//
// Usage:
//
//	go run ./cmd/estimator [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrdatainsights/salary-platform/internal/analytics"
	"github.com/hrdatainsights/salary-platform/internal/analytics/store"
	"github.com/hrdatainsights/salary-platform/internal/api"
	"github.com/hrdatainsights/salary-platform/internal/dataset"
	"github.com/hrdatainsights/salary-platform/internal/estimator"
	"github.com/hrdatainsights/salary-platform/internal/model"
	"github.com/hrdatainsights/salary-platform/internal/overview/cache"
	"github.com/hrdatainsights/salary-platform/pkg/config"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/health"
	"github.com/hrdatainsights/salary-platform/pkg/kafka"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
	"github.com/hrdatainsights/salary-platform/pkg/ratelimit"
	pkgredis "github.com/hrdatainsights/salary-platform/pkg/redis"
	"github.com/hrdatainsights/salary-platform/pkg/resilience"
	"github.com/hrdatainsights/salary-platform/pkg/rpc"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting estimator service", "port", cfg.Server.Port, "dataset_source", cfg.Dataset.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	artifact, table, err := loadInputs(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to load estimator inputs", "error", err)
		os.Exit(1)
	}
	m.DatasetRecords.Set(float64(table.Len()))

	est, err := buildEstimator(cfg, artifact, table)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownCategory) {
			slog.Error("model artifact cannot serve unseen categories", "error", err)
		} else {
			slog.Error("failed to build estimator", "error", err)
		}
		os.Exit(1)
	}
	slog.Info("estimator ready",
		"model_version", artifact.Version,
		"model_kind", artifact.Kind,
		"records", table.Len(),
		"countries", len(artifact.CountryClasses),
		"education_levels", len(artifact.EducationClasses),
	)

	checker := health.NewChecker()
	checker.Register("dataset", health.LoadedCheck("records", table.Len))
	checker.Register("model", health.LoadedCheck("country classes", func() int { return len(artifact.CountryClasses) }))
	if db != nil {
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	// Overview cache. A nil store keeps the cache in pass-through mode.
	var viewStore cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, overview caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			viewStore = redisClient
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("overview cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	views := cache.New(viewStore, cfg.Redis.CacheTTL, m)

	// Analytics: events go through Kafka when enabled, otherwise straight
	// into the local aggregator.
	aggregator := analytics.NewAggregator()
	var tracker api.Tracker = aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.PredictionEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{BufferSize: cfg.Analytics.BufferSize}, m)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
		defer consumer.Close()
		go func() {
			if err := aggregator.Start(ctx, consumer); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		checker.Register("kafka", health.PingCheck(producer.Ping, true))
		slog.Info("analytics pipeline started", "topic", topic)
	}

	var snapshots analytics.SnapshotLister
	if db != nil && cfg.Analytics.SnapshotInterval > 0 {
		snapStore := store.New(db)
		if err := snapStore.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
		} else {
			snapStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			snapshots = snapStore
		}
	}

	h := api.New(api.Deps{
		Estimator: est,
		Table:     table,
		Views:     views,
		Tracker:   tracker,
		Metrics:   m,
	}, api.Config{
		MaxExperience: cfg.Estimator.MaxExperience,
		Tracing:       cfg.Tracing.Enabled,
	})

	routerCfg := api.RouterConfig{
		Analytics: analytics.NewHandler(aggregator, snapshots),
		Health:    checker,
		Metrics:   m,
		Timeout:   cfg.Server.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx, cfg.RateLimit.Window)
		routerCfg.Limiter = limiter
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	if cfg.RPC.Port > 0 {
		rpcServer := rpc.NewServer()
		h.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.ListenAndServe(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, routerCfg),
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

	slog.Info("estimator service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// must finish before the deferred closes run.
	<-shutdownDone

	slog.Info("estimator service stopped")
}

// loadInputs reads the model artifact and the historical table concurrently.
func loadInputs(ctx context.Context, cfg *config.Config, db *postgres.Client) (*model.Artifact, *dataset.Table, error) {
	var (
		artifact *model.Artifact
		table    *dataset.Table
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := model.LoadFile(cfg.Model.ArtifactPath)
		if err != nil {
			return err
		}
		artifact = a
		return nil
	})
	g.Go(func() error {
		return resilience.WithTimeout(gctx, cfg.Dataset.LoadTimeout, "dataset-load", func(ctx context.Context) error {
			t, stats, err := loadDataset(ctx, cfg, db)
			if err != nil {
				return err
			}
			slog.Info("dataset loaded", "source", cfg.Dataset.Source, "rows", stats.Rows, "kept", stats.Kept, "skipped", stats.Skipped)
			table = t
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return artifact, table, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, db *postgres.Client) (*dataset.Table, dataset.LoadStats, error) {
	opts := dataset.LoadOptions{MaxSalary: cfg.Dataset.MaxSalary}
	switch cfg.Dataset.Source {
	case config.SourcePostgres:
		return dataset.NewPostgresSource(db).Load(ctx, opts)
	default:
		return dataset.LoadCSVFile(cfg.Dataset.Path, opts)
	}
}

func buildEstimator(cfg *config.Config, artifact *model.Artifact, table *dataset.Table) (*estimator.Estimator, error) {
	countries, err := estimator.NewCategoryEncoding("country", artifact.CountryClasses)
	if err != nil {
		return nil, err
	}
	educations, err := estimator.NewCategoryEncoding("education", artifact.EducationClasses)
	if err != nil {
		return nil, err
	}
	return estimator.New(estimator.Context{
		Table:           table,
		Countries:       countries,
		Educations:      educations,
		Model:           artifact.Regressor,
		ProjectionYears: cfg.Estimator.ProjectionYears,
		BaseYear:        cfg.Estimator.BaseYear,
	})
}
