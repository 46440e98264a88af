// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the load pipeline.
//
// A global, pluggable Backend defaults to a no-op implementation, so the
// helpers are always safe to call when no real backend is configured.
// Concrete systems (Prometheus Pushgateway, DogStatsD) live in subpackages
// and are installed once from main with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	FileTotal           = "sparkify_file_total"
	FileDurationSeconds = "sparkify_file_duration_seconds"
	RowsTotal           = "sparkify_rows_total"
	ErrorsTotal         = "sparkify_errors_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordFile counts one processed input file and its duration. pipeline is
// "song" or "log"; status is "success" or "failure".
func RecordFile(job, pipeline string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":      job,
		"pipeline": pipeline,
		"status":   status,
	}
	b := current()
	b.IncCounter(FileTotal, 1, lbls)
	b.ObserveHistogram(FileDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments the row counter for one target table or row kind.
//
// Typical kinds mirror the run statistics, e.g.:
//   - "songs", "artists", "time", "users", "songplays"
//   - "unmatched_songplays"
//   - "skipped_events"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordError counts a run-terminating error by its category.
func RecordError(job, kind string) {
	if kind == "" {
		return
	}
	current().IncCounter(ErrorsTotal, 1, Labels{
		"job":  job,
		"kind": kind,
	})
}
