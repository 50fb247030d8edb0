package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the keeper.
// These targets are used to measure and monitor session reliability.
const (
	// RefreshSuccessSLO defines the target ratio of successful refresh cycles (95%)
	RefreshSuccessSLO = 0.95

	// ArtifactAgeSLO defines the maximum acceptable artifact age in seconds
	// before the session is considered stale (2 hours)
	ArtifactAgeSLO = 7200.0

	// HealthScoreSLO defines the minimum acceptable health score ratio
	// (score 70 of 100)
	HealthScoreSLO = 0.70
)

// SLO tracking metrics
// These gauges are updated periodically (e.g., every minute) based on recent
// measurements to track whether the keeper is meeting its SLO targets.
var (
	// SLORefreshSuccess tracks the ratio of successful refresh cycles (0-1)
	// calculated as: successful_refreshes / total_refreshes
	SLORefreshSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_refresh_success_ratio",
			Help: "Ratio of successful refresh cycles (0-1), target: 0.95",
		},
	)

	// SLOArtifactAge tracks the seconds elapsed since the last successful
	// refresh exported an artifact
	SLOArtifactAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_artifact_age_seconds",
			Help: "Seconds since the last successful artifact export, target: < 7200",
		},
	)

	// SLOHealthScore tracks the consumer-reported health score as a ratio (0-1)
	SLOHealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_health_score_ratio",
			Help: "Consumer-reported health score ratio (0-1), target: >= 0.70",
		},
	)
)

// UpdateRefreshSuccessRatio updates the refresh success SLO metric.
// Call this periodically (e.g., every minute) with the calculated ratio.
//
// Example calculation:
//
//	snap := scorer.Snapshot()
//	total := snap.Successes + snap.Failures
//	if total > 0 {
//	    slo.UpdateRefreshSuccessRatio(float64(snap.Successes) / float64(total))
//	}
func UpdateRefreshSuccessRatio(ratio float64) {
	SLORefreshSuccess.Set(ratio)
}

// UpdateArtifactAge updates the artifact age SLO metric.
// Call this periodically with the seconds since the last successful export.
func UpdateArtifactAge(seconds float64) {
	SLOArtifactAge.Set(seconds)
}

// UpdateHealthScoreRatio updates the health score SLO metric.
// Call this periodically with the current score divided by the maximum.
func UpdateHealthScoreRatio(ratio float64) {
	SLOHealthScore.Set(ratio)
}
