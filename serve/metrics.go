package serve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors of the recognition service
type Metrics struct {
	registry *prometheus.Registry
	// requests counts recognition requests by transport and outcome
	requests *prometheus.CounterVec
	// stageLatency is the duration of each processing stage
	stageLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers the service metrics on a new registry
func NewMetrics() *Metrics {

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "platenet",
			Subsystem: "recognize",
			Name:      "requests_total",
			Help:      "Plate recognition requests by transport and status",
		}, []string{"transport", "status"}),

		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "platenet",
			Subsystem: "recognize",
			Name:      "stage_duration_seconds",
			Help:      "Duration of the preprocess, inference and postprocess stages",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.stageLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// request counts one finished request
func (m *Metrics) request(transport, status string) {

	if m == nil {
		return
	}

	m.requests.WithLabelValues(transport, status).Inc()
}
