package accurate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	wait     prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetrics creates the dispatcher collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eximaccurate",
			Subsystem: "dispatcher",
			Name:      "requests_total",
			Help:      "Provider calls by final outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eximaccurate",
			Subsystem: "dispatcher",
			Name:      "retries_total",
			Help:      "Provider call retries by reason.",
		}, []string{"reason"}),
		wait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eximaccurate",
			Subsystem: "dispatcher",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for a concurrency slot and rate token.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.125, 0.25, 0.5, 1, 2, 5, 10},
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eximaccurate",
			Subsystem: "dispatcher",
			Name:      "in_flight_requests",
			Help:      "Provider HTTP requests currently in flight across all credentials.",
		}),
	}
}
