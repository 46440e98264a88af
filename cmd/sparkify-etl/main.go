// Command sparkify-etl loads the song and activity-log JSON files into the
// sparkify star schema. The schema must already exist; see sparkify-schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jrwils/sparkifydb-pg/internal/config"
	"github.com/jrwils/sparkifydb-pg/internal/logging"
	"github.com/jrwils/sparkifydb-pg/internal/metrics"
	"github.com/jrwils/sparkifydb-pg/internal/metrics/datadog"
	"github.com/jrwils/sparkifydb-pg/internal/metrics/prompush"
	"github.com/jrwils/sparkifydb-pg/internal/pipeline"
	"github.com/jrwils/sparkifydb-pg/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/jrwils/sparkifydb-pg/internal/storage/all"
)

// Test seams.
var (
	newStoreFn = storage.New
	dotEnvPath = ".env"
)

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run executes one ETL run and returns the process exit code. Progress
// lines go to stdout; logs and the final error go to stderr.
func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	getenv, err := config.WithDotEnv(dotEnvPath, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("sparkify-etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.LoadFromArgs(fs, getenv, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	issues := config.ValidateConfig(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 1
	}
	if cfg.Validate {
		fmt.Fprintln(stderr, "configuration is valid")
		return 0
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Out: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	flush := setupMetrics(cfg, log)
	defer flush()

	if err := runETL(context.Background(), cfg, log, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runETL(ctx context.Context, cfg *config.Config, log *zap.Logger, stdout io.Writer) error {
	log.Info("connecting", zap.String("driver", cfg.Driver), zap.String("dsn", cfg.Redacted()))
	store, err := newStoreFn(ctx, storage.Config{Kind: cfg.Driver, DSN: cfg.DSN()})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	defer store.Close()

	start := time.Now()
	r := pipeline.New(store,
		pipeline.WithLogger(log),
		pipeline.WithOutput(stdout),
		pipeline.WithJob(cfg.Job),
		pipeline.WithExt(cfg.Ext),
	)
	if _, err := r.Run(ctx, cfg.SongDataDir, cfg.LogDataDir); err != nil {
		return err
	}

	logTableCounts(ctx, store, log)
	log.Info("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return nil
}

// logTableCounts logs the row count of every schema table. Failures are
// logged and otherwise ignored.
func logTableCounts(ctx context.Context, store storage.Store, log *zap.Logger) {
	fields := make([]zap.Field, 0, len(storage.Tables))
	for _, t := range storage.Tables {
		n, err := store.Count(ctx, t)
		if err != nil {
			log.Warn("count failed", zap.String("table", t), zap.Error(err))
			continue
		}
		fields = append(fields, zap.Int64(t, n))
	}
	log.Info("table counts", fields...)
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it at exit. A backend that fails to start leaves
// metrics disabled.
func setupMetrics(cfg *config.Config, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.MetricsBackend {
	case config.MetricsPushgateway:
		b, err = prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  "sparkify.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.MetricsBackend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; using nop", zap.String("backend", cfg.MetricsBackend), zap.Error(err))
		return func() {}
	}

	log.Info("metrics enabled", zap.String("backend", cfg.MetricsBackend), zap.String("job", cfg.Job))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}
