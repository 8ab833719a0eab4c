package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CourierMetrics tracks outbound courier calls.
type CourierMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewCourierMetrics(reg prometheus.Registerer) *CourierMetrics {
	if reg == nil {
		return &CourierMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "courier",
		Name:      "calls_total",
		Help:      "Courier API calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "courier",
		Name:      "call_duration_seconds",
		Help:      "Courier API call latency in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"operation"})
	reg.MustRegister(calls, latency)
	return &CourierMetrics{calls: calls, latency: latency}
}

// Observe records one courier call. outcome is "ok", "rejected" or "error".
func (c *CourierMetrics) Observe(operation, outcome string, duration time.Duration) {
	if c == nil || c.calls == nil {
		return
	}
	c.calls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	c.latency.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}
