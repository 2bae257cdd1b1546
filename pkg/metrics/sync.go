package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation run outcomes.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	records  *prometheus.CounterVec
}

// Record outcome labels reported per reconciled invoice.
const (
	RecordOutcomeMatched = "matched"
	RecordOutcomeUpdated = "updated"
	RecordOutcomeCreated = "created"
)

// NewSyncMetrics registers the reconciliation metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_sync_duration_seconds",
		Help:    "Duration of payment reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_sync_success",
		Help: "Successful payment reconciliation runs.",
	}, []string{"scope"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_sync_failure",
		Help: "Failed payment reconciliation runs.",
	}, []string{"scope"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_sync_records",
		Help: "Reconciled payment records by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, success, failure, records)
	return &SyncMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		records:  records,
	}
}

// ObserveDuration records the duration for the named sync scope.
func (s *SyncMetrics) ObserveDuration(scope string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(scope)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named sync scope.
func (s *SyncMetrics) IncSuccess(scope string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(scope)).Inc()
}

// IncFailure increments the failure counter for the named sync scope.
func (s *SyncMetrics) IncFailure(scope string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(scope)).Inc()
}

// AddRecords adds the count of reconciled records for the given outcome.
func (s *SyncMetrics) AddRecords(outcome string, count int) {
	if s == nil || s.records == nil || count <= 0 {
		return
	}
	s.records.WithLabelValues(normalizeLabel(outcome)).Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
