package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the worker side.
type Metrics struct {
	JobsProcessed   *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobRetries      *prometheus.CounterVec
	JobsMovedFailed *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	StaleRecovered  prometheus.Counter
}

// NewMetrics registers the worker metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offers_jobs_processed_total",
				Help: "Jobs processed by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: ok, retry, failed
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offers_job_duration_seconds",
				Help:    "Handler execution time by job kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"kind"},
		),
		JobRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offers_job_retries_total",
				Help: "Retries scheduled by job kind",
			},
			[]string{"kind"},
		),
		JobsMovedFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offers_jobs_failed_total",
				Help: "Jobs moved to the failed queue by kind",
			},
			[]string{"kind"},
		),
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "offers_queue_depth",
				Help: "Claimable jobs per queue",
			},
			[]string{"queue"},
		),
		StaleRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "offers_stale_jobs_recovered_total",
				Help: "Jobs released back after a dead lease",
			},
		),
	}
}
