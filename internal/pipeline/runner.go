// Package pipeline drives a full ETL run: it discovers the song and log
// files, extracts each one and loads it into the star schema in its own
// unit of work.
//
// A run is strictly sequential. The first error rolls back the open unit,
// stops the run and is returned wrapped with the offending path; files
// committed before it stay committed.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jrwils/sparkifydb-pg/internal/datasource/file"
	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
	"github.com/jrwils/sparkifydb-pg/internal/metrics"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

// Pipeline names used in logs and metric labels.
const (
	PipelineSong = "song"
	PipelineLog  = "log"
)

// FileFunc loads one input file inside tx and reports what it loaded.
type FileFunc func(ctx context.Context, tx storage.Tx, path string) (Stats, error)

// Runner holds the explicit store handle and reporting sinks of one run.
// It is not safe for concurrent use.
type Runner struct {
	store storage.Store
	log   *zap.Logger
	out   io.Writer
	job   string
	ext   string

	stats Stats
	seen  map[uint64]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. The default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithOutput sets where progress lines are printed. The default is io.Discard.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithJob sets the job label attached to metrics.
func WithJob(job string) Option {
	return func(r *Runner) { r.job = job }
}

// WithExt sets the data file extension passed to discovery.
func WithExt(ext string) Option {
	return func(r *Runner) { r.ext = ext }
}

// New returns a Runner that loads into store.
func New(store storage.Store, opts ...Option) *Runner {
	r := &Runner{
		store: store,
		log:   zap.NewNop(),
		out:   io.Discard,
		job:   "sparkify",
		ext:   file.DefaultExt,
		seen:  map[uint64]string{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stats returns the totals of everything committed so far.
func (r *Runner) Stats() Stats { return r.stats }

// Run loads every song file under songRoot, then every log file under
// logRoot. Songs go first so that songplays can resolve against them.
func (r *Runner) Run(ctx context.Context, songRoot, logRoot string) (Stats, error) {
	start := time.Now()
	if err := r.ProcessData(ctx, PipelineSong, songRoot, r.ProcessSongFile); err != nil {
		return r.stats, err
	}
	if err := r.ProcessData(ctx, PipelineLog, logRoot, r.ProcessLogFile); err != nil {
		return r.stats, err
	}
	r.log.Info("run complete",
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
		zap.Object("stats", r.stats),
	)
	return r.stats, nil
}

// ProcessData discovers the files under root and applies fn to each in its
// own unit of work, printing "<n> files found in <root>" once and
// "<i>/<n> files processed." after every commit. name labels logs and
// metrics.
func (r *Runner) ProcessData(ctx context.Context, name, root string, fn FileFunc) error {
	paths, err := file.Discover(root, r.ext)
	if err != nil {
		metrics.RecordError(r.job, etlerr.Kind(err))
		r.log.Error("discovery failed", zap.String("pipeline", name), zap.String("root", root), zap.Error(err))
		return err
	}

	n := len(paths)
	fmt.Fprintf(r.out, "%d files found in %s\n", n, root)
	r.log.Debug("files discovered", zap.String("pipeline", name), zap.String("root", root), zap.Int("count", n))

	for i, path := range paths {
		began := time.Now()
		delta, err := r.processFile(ctx, path, fn)
		metrics.RecordFile(r.job, name, err, time.Since(began))
		if err != nil {
			kind := etlerr.Kind(err)
			metrics.RecordError(r.job, kind)
			r.log.Error("file failed",
				zap.String("pipeline", name),
				zap.String("path", path),
				zap.String("kind", kind),
				zap.Error(err),
			)
			return fmt.Errorf("process %s: %w", path, err)
		}

		r.stats.add(delta)
		delta.record(r.job)
		fmt.Fprintf(r.out, "%d/%d files processed.\n", i+1, n)
	}
	return nil
}

// processFile runs fn in a fresh unit of work and commits it. Any failure
// rolls the unit back.
func (r *Runner) processFile(ctx context.Context, path string, fn FileFunc) (delta Stats, err error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.log.Warn("rollback failed", zap.String("path", path), zap.Error(rbErr))
		}
	}()

	if delta, err = fn(ctx, tx, path); err != nil {
		return Stats{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return Stats{}, err
	}
	delta.Files = 1
	return delta, nil
}

// noteChecksum records sum for path and reports whether an earlier file of
// this run had identical contents.
func (r *Runner) noteChecksum(sum uint64, path string) bool {
	if first, ok := r.seen[sum]; ok {
		r.log.Warn("duplicate file contents", zap.String("path", path), zap.String("first", first))
		return true
	}
	r.seen[sum] = path
	return false
}
