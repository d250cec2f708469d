package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments outgoing requests. One instance is shared by all
// clients registered against the same registry.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matrix",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "HTTP attempts issued, by service, method and status code.",
		}, []string{"service", "method", "code"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matrix",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retries scheduled after a transient failure.",
		}, []string{"service", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matrix",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of single HTTP attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.duration)
	}
	return m
}

func (m *Metrics) observe(service, method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, method, code).Inc()
	m.duration.WithLabelValues(service, method).Observe(elapsed.Seconds())
}

func (m *Metrics) retry(service, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(service, reason).Inc()
}
