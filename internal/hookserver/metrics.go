package hookserver

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors intake registers against
// (SPEC_FULL.md §4.5 EXPANSION: "each accepted event type increments a
// per-event-type counter"), grounded on the teacher's hook.Metrics /
// WebhookCounter pairing.
type Metrics struct {
	WebhookCounter *prometheus.CounterVec
	RejectCounter  *prometheus.CounterVec
	DedupeCounter  *prometheus.CounterVec
}

// NewMetrics registers and returns a fresh Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{
		WebhookCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homu_webhook_events_total",
			Help: "Number of webhooks accepted by event kind.",
		}, []string{"kind"}),
		RejectCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homu_webhook_rejections_total",
			Help: "Number of webhooks rejected by path and reason.",
		}, []string{"path", "reason"}),
		DedupeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homu_webhook_duplicates_total",
			Help: "Number of webhooks recognized as a retry of an already-applied delivery.",
		}, []string{"path"}),
	}
	prometheus.MustRegister(m.WebhookCounter, m.RejectCounter, m.DedupeCounter)
	return m
}
