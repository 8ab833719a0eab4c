package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "courier-tracking-poll"
	end := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveRun(job, 250*time.Millisecond, end, nil)
	m.ObserveRun(job, time.Second, end.Add(time.Minute), errors.New("courier down"))
	m.IncLockSkipped()

	mfs := gather(t, reg)
	if got := sample(mfs, "dropship_cron_job_runs_total", map[string]string{"job": job, "outcome": OutcomeOK}); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one ok run, got %v", got)
	}
	if got := sample(mfs, "dropship_cron_job_runs_total", map[string]string{"job": job, "outcome": OutcomeError}); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one failed run, got %v", got)
	}
	if got := sample(mfs, "dropship_cron_job_duration_seconds", map[string]string{"job": job}); got.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected two duration samples, got %v", got)
	}
	// the failing run must not move the staleness gauge
	if got := sample(mfs, "dropship_cron_job_last_success_timestamp_seconds", map[string]string{"job": job}); got.GetGauge().GetValue() != float64(end.Unix()) {
		t.Fatalf("unexpected last success %v", got)
	}
	if got := sample(mfs, "dropship_cron_cycles_skipped_total", nil); got.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle, got %v", got)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveRun("", time.Second, time.Now(), nil)
	m.IncLockSkipped()

	var unset *CronJobMetrics
	unset.ObserveRun("x", time.Second, time.Now(), errors.New("x"))
}

func gather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	return mfs
}

// sample returns the metric in family name whose labels include all of want,
// or nil.
func sample(mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabels(metric.GetLabel(), want) {
				return metric
			}
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
