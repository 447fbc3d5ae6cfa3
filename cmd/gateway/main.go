// Command gateway starts the API gateway.
//
// The gateway is the entry point for external clients. It authenticates
// requests with API keys stored in PostgreSQL, applies each key's rate
// limit, and proxies to the estimator and analytics services. Admin keys
// may manage keys and invalidate the overview cache.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
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

	"github.com/hrdatainsights/salary-platform/internal/auth/apikey"
	gwhandler "github.com/hrdatainsights/salary-platform/internal/gateway/handler"
	"github.com/hrdatainsights/salary-platform/internal/gateway/router"
	"github.com/hrdatainsights/salary-platform/pkg/config"
	"github.com/hrdatainsights/salary-platform/pkg/health"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
	"github.com/hrdatainsights/salary-platform/pkg/ratelimit"
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
	slog.Info("starting gateway",
		"port", cfg.Gateway.Port,
		"estimator_url", cfg.Gateway.EstimatorURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	validator := apikey.NewValidator(db)
	if err := validator.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare api key schema", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	h, err := gwhandler.New(gwhandler.Config{
		EstimatorURL: cfg.Gateway.EstimatorURL,
		AnalyticsURL: cfg.Gateway.AnalyticsURL,
	}, validator, m)
	if err != nil {
		slog.Error("invalid gateway config", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))
	checker.Register("estimator", health.PingCheck(h.BackendCheck("estimator"), false))
	checker.Register("analytics", health.PingCheck(h.BackendCheck("analytics"), true))

	// Per-key limits come from the keys; the default only sizes the window.
	limiter := ratelimit.New(cfg.RateLimit.Requests, time.Minute)
	go limiter.Run(ctx, 5*time.Minute)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: router.New(h, router.Config{
			Validator: validator,
			Limiter:   limiter,
			Health:    checker,
			Metrics:   m,
		}),
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

	slog.Info("gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// must finish before the deferred closes run.
	<-shutdownDone
	slog.Info("gateway stopped")
}
