package metrics

import "github.com/prometheus/client_golang/prometheus"

// FulfillmentMetrics counts sub-order transitions and ledger settlements.
type FulfillmentMetrics struct {
	transitions *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "transitions_total",
		Help:      "Applied sub-order status transitions.",
	}, []string{"from", "to"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "settlements_total",
		Help:      "Ledger settlements by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, settlements)
	return &FulfillmentMetrics{transitions: transitions, settlements: settlements}
}

func (f *FulfillmentMetrics) IncTransition(from, to string) {
	if f == nil || f.transitions == nil {
		return
	}
	f.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (f *FulfillmentMetrics) IncSettlement(outcome string) {
	if f == nil || f.settlements == nil {
		return
	}
	f.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}
