package iterative

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the optimizer's prometheus collectors.
type Metrics struct {
	RuleApplications *prometheus.CounterVec
	Passes           prometheus.Histogram
	Failures         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	const namespace = "planopt"

	return &Metrics{
		RuleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_applications_total",
			Help:      "Number of times a rule replaced a plan node",
		}, []string{"rule"}),

		Passes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "passes",
			Help:      "Histogram of passes the optimizer needed to reach a fixpoint",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),

		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "failures_total",
			Help:      "Number of failed optimizations by error classification",
		}, []string{"reason"}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RuleApplications,
		m.Passes,
		m.Failures,
	}
}
