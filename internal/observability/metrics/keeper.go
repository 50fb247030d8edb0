package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// KeeperMetrics provides Prometheus metrics for the session keeper runtime.
//
// Metrics:
//   - keeper_refresh_total: Total refresh attempts by status (success/failure/fallback)
//   - keeper_refresh_duration_seconds: Duration histogram of refresh cycles
//   - keeper_breaker_opens_total: Total circuit breaker open transitions
//   - keeper_emergency_activations_total: Total emergency mode activations
//   - keeper_restarts_total: Total browser restarts by reason
//   - keeper_export_rejections_total: Exports rejected by the protection rule
//   - keeper_health_score: Current artifact health score (0-100)
//   - keeper_artifact_records: Record count of the last exported artifact
//   - keeper_last_refresh_timestamp: Unix timestamp of the last successful refresh
//
// Example usage:
//
//	m := NewKeeperMetrics()
//	m.MustRegister()
//
//	start := time.Now()
//	// ... run refresh ...
//	m.RecordRefresh("success", time.Since(start).Seconds())
type KeeperMetrics struct {
	// RefreshTotal counts refresh attempts.
	// Type: Counter
	// Labels: status (success, failure, fallback)
	RefreshTotal *prometheus.CounterVec

	// RefreshDurationSeconds measures the duration of refresh cycles.
	// Type: Histogram
	// Buckets: 1s, 5s, 15s, 30s, 1m, 2m, 5m (a refresh is one navigation)
	RefreshDurationSeconds prometheus.Histogram

	// BreakerOpensTotal counts transitions of the refresh circuit into open.
	// Type: Counter
	BreakerOpensTotal prometheus.Counter

	// EmergencyActivationsTotal counts emergency mode declarations.
	// Type: Counter
	EmergencyActivationsTotal prometheus.Counter

	// RestartsTotal counts browser restarts.
	// Type: Counter
	// Labels: reason (watchdog, crash, rotation, memory, manual)
	RestartsTotal *prometheus.CounterVec

	// ExportRejectionsTotal counts exports rejected because the fresh
	// browser state carried no required session records.
	// Type: Counter
	ExportRejectionsTotal prometheus.Counter

	// HealthScore is the current artifact health score.
	// Type: Gauge
	HealthScore prometheus.Gauge

	// ArtifactRecords is the record count of the last exported artifact.
	// Type: Gauge
	ArtifactRecords prometheus.Gauge

	// LastRefreshTimestamp is the Unix timestamp of the last successful
	// refresh-and-export.
	// Type: Gauge
	LastRefreshTimestamp prometheus.Gauge
}

// NewKeeperMetrics creates the metric set. Metrics are auto-registered
// with the default registry via promauto.
func NewKeeperMetrics() *KeeperMetrics {
	return &KeeperMetrics{
		RefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_refresh_total",
			Help: "Total number of refresh attempts by status (success/failure/fallback)",
		}, []string{"status"}),

		RefreshDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keeper_refresh_duration_seconds",
			Help:    "Duration of refresh cycles in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),

		BreakerOpensTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keeper_breaker_opens_total",
			Help: "Total number of circuit breaker open transitions",
		}),

		EmergencyActivationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keeper_emergency_activations_total",
			Help: "Total number of emergency mode activations",
		}),

		RestartsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_restarts_total",
			Help: "Total number of browser restarts by reason",
		}, []string{"reason"}),

		ExportRejectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keeper_export_rejections_total",
			Help: "Total number of exports rejected by the protection rule",
		}),

		HealthScore: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_health_score",
			Help: "Current artifact health score (0-100)",
		}),

		ArtifactRecords: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_artifact_records",
			Help: "Record count of the last exported artifact",
		}),

		LastRefreshTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_last_refresh_timestamp",
			Help: "Unix timestamp of the last successful refresh-and-export",
		}),
	}
}

// MustRegister is a no-op kept for the conventional init sequence;
// promauto already registered everything in NewKeeperMetrics.
func (m *KeeperMetrics) MustRegister() {}

// RecordRefresh records one refresh attempt with its outcome and duration.
func (m *KeeperMetrics) RecordRefresh(status string, seconds float64) {
	m.RefreshTotal.WithLabelValues(status).Inc()
	m.RefreshDurationSeconds.Observe(seconds)
	if status == "success" {
		m.LastRefreshTimestamp.SetToCurrentTime()
	}
}

// RecordBreakerOpen increments the breaker open counter.
func (m *KeeperMetrics) RecordBreakerOpen() {
	m.BreakerOpensTotal.Inc()
}

// RecordEmergencyActivation increments the emergency activation counter.
func (m *KeeperMetrics) RecordEmergencyActivation() {
	m.EmergencyActivationsTotal.Inc()
}

// RecordRestart increments the restart counter for the given reason.
func (m *KeeperMetrics) RecordRestart(reason string) {
	m.RestartsTotal.WithLabelValues(reason).Inc()
}

// RecordExportRejection increments the protection-rule rejection counter.
func (m *KeeperMetrics) RecordExportRejection() {
	m.ExportRejectionsTotal.Inc()
}

// SetHealthScore updates the health score gauge.
func (m *KeeperMetrics) SetHealthScore(score int) {
	m.HealthScore.Set(float64(score))
}

// SetArtifactRecords updates the exported record count gauge.
func (m *KeeperMetrics) SetArtifactRecords(count int) {
	m.ArtifactRecords.Set(float64(count))
}
