package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the bulk issuance module.
type Metrics struct {
	SubmissionsAccepted prometheus.Counter
	SubmissionsFailed   prometheus.Counter
	RecipientsSubmitted prometheus.Counter
	RecipientsRejected  prometheus.Counter
	StatusRefreshes     prometheus.Counter
	SubmitDuration      prometheus.Histogram
}

// New creates a new Metrics instance with all bulk issuance metrics registered.
func New() *Metrics {
	return &Metrics{
		SubmissionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_bulkissue_submissions_accepted_total",
			Help: "Total number of bulk issuance submissions accepted by the remote service",
		}),
		SubmissionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_bulkissue_submissions_failed_total",
			Help: "Total number of bulk issuance submissions rejected or failed in transport",
		}),
		RecipientsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_bulkissue_recipients_submitted_total",
			Help: "Total number of recipients sent to the remote service",
		}),
		RecipientsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_bulkissue_recipients_rejected_total",
			Help: "Total number of recipients rejected during local validation",
		}),
		StatusRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcbatch_bulkissue_status_refreshes_total",
			Help: "Total number of on-demand batch status polls",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcbatch_bulkissue_submit_duration_seconds",
			Help:    "Duration of bulk issuance submission calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveSubmit records the duration of a submission call.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}
