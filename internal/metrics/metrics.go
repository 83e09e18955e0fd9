package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeCreated = "created"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus collectors for the registration server.
type Metrics struct {
	Registrations  *prometheus.CounterVec
	InsertDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "customer_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		InsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "customer_insert_duration_seconds",
			Help:    "Latency of the customers INSERT",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveInsert(d time.Duration) {
	if m == nil {
		return
	}
	m.InsertDuration.Observe(d.Seconds())
}
