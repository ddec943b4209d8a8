package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the worker pool's prometheus collectors
type Metrics struct {
	processed *prometheus.CounterVec
	retried   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers job collectors on reg. A nil registerer leaves them
// unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citymind",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Jobs processed, by type and outcome.",
		}, []string{"type", "outcome"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citymind",
			Subsystem: "jobs",
			Name:      "retried_total",
			Help:      "Jobs rescheduled after a failed attempt.",
		}, []string{"type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citymind",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job handler run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.retried, m.duration)
	}
	return m
}

func (m *Metrics) observe(jobType, outcome string, seconds float64) {
	m.processed.WithLabelValues(jobType, outcome).Inc()
	m.duration.WithLabelValues(jobType).Observe(seconds)
}
