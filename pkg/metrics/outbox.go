package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics describes the outbox publisher.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	batch  prometheus.Histogram
	lag    prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled, by event type and result (published, retry, dead_letter).",
		}, []string{"event_type", "result"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time to claim and dispatch one non-empty batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_lag_seconds",
			Help:      "Delay between an event occurring and its publish acknowledgement.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.events, m.batch, m.lag)
	return m
}

func (o *OutboxMetrics) ObserveEvent(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (o *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if o == nil || o.batch == nil {
		return
	}
	o.batch.Observe(elapsed.Seconds())
}

func (o *OutboxMetrics) ObserveLag(lag time.Duration) {
	if o == nil || o.lag == nil || lag < 0 {
		return
	}
	o.lag.Observe(lag.Seconds())
}
