// Command importer loads a survey CSV export into PostgreSQL so the
// estimator can run with dataset.source=postgres.
//
// The survey_responses table is replaced in a single transaction; readers
// see either the old or the new data.
//
// Usage:
//
//	go run ./cmd/importer -csv data/survey_results_public.csv [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrdatainsights/salary-platform/internal/dataset"
	"github.com/hrdatainsights/salary-platform/pkg/config"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	csvPath := flag.String("csv", "", "survey CSV to import (defaults to dataset.path)")
	maxSalary := flag.Float64("max-salary", -1, "drop salaries at or above this value (defaults to dataset.maxSalary)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	path := *csvPath
	if path == "" {
		path = cfg.Dataset.Path
	}
	opts := dataset.LoadOptions{MaxSalary: cfg.Dataset.MaxSalary}
	if *maxSalary >= 0 {
		opts.MaxSalary = *maxSalary
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	table, stats, err := dataset.LoadCSVFile(path, opts)
	if err != nil {
		slog.Error("failed to read survey csv", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("survey csv parsed", "path", path, "rows", stats.Rows, "kept", stats.Kept, "skipped", stats.Skipped)

	db, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	source := dataset.NewPostgresSource(db)
	if err := source.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}
	if err := source.Replace(ctx, table); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("import complete", "records", table.Len(), "duration", time.Since(start))
}
