package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
// Tracks run lifecycle counts and item-level outcomes.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsStopped   prometheus.Counter
	ItemsVerified prometheus.Counter
	ItemsFailed   prometheus.Counter
	ItemsWarned   prometheus.Counter
	RunDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all verification module metrics registered.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_runs_started_total",
			Help: "Total number of verification runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_runs_completed_total",
			Help: "Total number of verification runs that ran to completion",
		}),
		RunsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_runs_stopped_total",
			Help: "Total number of verification runs stopped before completion",
		}),
		ItemsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_items_verified_total",
			Help: "Total number of items that verified cleanly",
		}),
		ItemsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_items_failed_total",
			Help: "Total number of items that failed verification",
		}),
		ItemsWarned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_verification_items_warned_total",
			Help: "Total number of items verified with warnings",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcbatch_verification_run_duration_seconds",
			Help:    "End-to-end duration of verification runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// ObserveRun records the duration of a finished run.
// Call with time.Now() at the start of the run.
func (m *Metrics) ObserveRun(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}
