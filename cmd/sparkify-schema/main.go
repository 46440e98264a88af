// Command sparkify-schema drops and recreates the five sparkify tables on
// the configured database. With -keep it only creates missing tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/jrwils/sparkifydb-pg/internal/config"
	"github.com/jrwils/sparkifydb-pg/internal/logging"
	"github.com/jrwils/sparkifydb-pg/internal/storage"

	_ "github.com/jrwils/sparkifydb-pg/internal/storage/all"
)

var newStoreFn = storage.New

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	getenv, err := config.WithDotEnv(".env", getenv)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("sparkify-schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keep := fs.Bool("keep", false, "create missing tables without dropping existing ones")
	cfg, err := config.LoadFromArgs(fs, getenv, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Out: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Info("connecting", zap.String("driver", cfg.Driver), zap.String("dsn", cfg.Redacted()))
	store, err := newStoreFn(ctx, storage.Config{Kind: cfg.Driver, DSN: cfg.DSN()})
	if err != nil {
		fmt.Fprintf(stderr, "open %s store: %v\n", cfg.Driver, err)
		return 1
	}
	defer store.Close()

	apply, verb := storage.ResetSchema, "reset"
	if *keep {
		apply, verb = storage.CreateSchema, "created"
	}
	if err := apply(ctx, cfg.Driver, store); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "schema %s: %d tables on %s\n", verb, len(storage.Tables), cfg.Driver)
	return 0
}
