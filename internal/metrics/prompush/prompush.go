// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A one-shot load job has no scrape window, so collected
// metrics are pushed once at the end of the run instead of being exposed over
// HTTP.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/jrwils/sparkifydb-pg/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	fileCounter  *prometheus.CounterVec // sparkify_file_total
	fileDuration *prometheus.SummaryVec // sparkify_file_duration_seconds
	rowCounter   *prometheus.CounterVec // sparkify_rows_total
	errorCounter *prometheus.CounterVec // sparkify_errors_total
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName is the
// Pushgateway grouping key and defaults to "sparkify".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sparkify"
	}

	reg := prometheus.NewRegistry()

	// job is carried by the Pushgateway grouping key, not as a label.
	fileCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FileTotal,
			Help: "Input files processed, partitioned by pipeline and status.",
		},
		[]string{"pipeline", "status"},
	)
	fileDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.FileDurationSeconds,
			Help:       "Time spent extracting and loading one input file.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"pipeline", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows written or skipped, partitioned by kind (songs, users, songplays, skipped_events, ...).",
		},
		[]string{"kind"},
	)
	errorCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.ErrorsTotal,
			Help: "Run-terminating errors by category.",
		},
		[]string{"kind"},
	)

	for name, c := range map[string]prometheus.Collector{
		"file counter":  fileCounter,
		"file summary":  fileDuration,
		"row counter":   rowCounter,
		"error counter": errorCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		fileCounter:  fileCounter,
		fileDuration: fileDuration,
		rowCounter:   rowCounter,
		errorCounter: errorCounter,
	}, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.FileTotal:
		if b.fileCounter == nil {
			return
		}
		b.fileCounter.WithLabelValues(labels["pipeline"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.ErrorsTotal:
		if b.errorCounter == nil {
			return
		}
		b.errorCounter.WithLabelValues(labels["kind"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.FileDurationSeconds || b.fileDuration == nil {
		return
	}
	b.fileDuration.WithLabelValues(labels["pipeline"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
