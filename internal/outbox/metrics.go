package outbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the outbox's operational counters via prometheus, the
// library the pack's go.mod already declares for exactly this concern.
type Metrics struct {
	Applied   *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Dead      *prometheus.CounterVec
	DrainTime *prometheus.HistogramVec
}

// NewMetrics registers the outbox's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the process
// default registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codesearch_outbox_applied_total",
			Help: "Outbox rows successfully applied to their target store.",
		}, []string{"target_store", "operation"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codesearch_outbox_retry_total",
			Help: "Outbox rows that failed and were rescheduled for retry.",
		}, []string{"target_store", "operation"}),
		Dead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codesearch_outbox_dead_total",
			Help: "Outbox rows that exhausted their retry budget.",
		}, []string{"target_store", "operation"}),
		DrainTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codesearch_outbox_drain_seconds",
			Help:    "Time to drain one claimed batch for a target store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target_store"}),
	}
	reg.MustRegister(m.Applied, m.Failed, m.Dead, m.DrainTime)
	return m
}
