package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCourierMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCourierMetrics(reg)
	m.Observe("create_pickup", OutcomeOK, 300*time.Millisecond)
	m.Observe("create_pickup", OutcomeOK, 200*time.Millisecond)
	m.Observe("create_pickup", OutcomeRejected, 100*time.Millisecond)

	mfs := gather(t, reg)
	if got := sample(mfs, "dropship_courier_calls_total", map[string]string{"outcome": OutcomeOK}); got.GetCounter().GetValue() != 2 {
		t.Fatalf("expected two ok calls, got %v", got)
	}
	if got := sample(mfs, "dropship_courier_calls_total", map[string]string{"outcome": OutcomeRejected}); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one rejected call, got %v", got)
	}
	latency := sample(mfs, "dropship_courier_call_duration_seconds", map[string]string{"operation": "create_pickup"})
	if latency.GetHistogram().GetSampleSum() < 0.59 {
		t.Fatalf("expected latency sum ~0.6, got %v", latency)
	}
}

func TestFulfillmentMetricsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)
	m.IncTransition("awaiting_packaging", "record_created")
	m.IncSettlement("settled")

	mfs := gather(t, reg)
	if got := sample(mfs, "dropship_fulfillment_transitions_total", map[string]string{"to": "record_created"}); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one transition, got %v", got)
	}
	if got := sample(mfs, "dropship_fulfillment_settlements_total", map[string]string{"outcome": "settled"}); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one settlement, got %v", got)
	}
}
