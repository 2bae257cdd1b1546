package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSyncMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSyncMetrics(reg)
	scope := "all"
	metrics.ObserveDuration(scope, 250*time.Millisecond)
	metrics.IncSuccess(scope)
	metrics.IncFailure(scope)
	metrics.AddRecords(RecordOutcomeUpdated, 3)
	metrics.AddRecords(RecordOutcomeCreated, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payment_sync_success", "scope", scope); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_sync_failure", "scope", scope); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_sync_records", "outcome", RecordOutcomeUpdated); err != nil {
		t.Fatalf("fetch records: %v", err)
	} else if got != 3 {
		t.Fatalf("expected records=3, got %f", got)
	}

	if _, err := fetchCounterValue(mfs, "payment_sync_records", "outcome", RecordOutcomeCreated); err == nil {
		t.Fatalf("zero-count outcome should not be exported")
	}

	if got, err := fetchHistogramSum(mfs, "payment_sync_duration_seconds", "scope", scope); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestSyncMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *SyncMetrics
	metrics.ObserveDuration("all", time.Second)
	metrics.IncSuccess("all")
	metrics.IncFailure("all")
	metrics.AddRecords(RecordOutcomeMatched, 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
