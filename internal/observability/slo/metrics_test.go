package slo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestSLOConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"RefreshSuccessSLO", RefreshSuccessSLO, 0.95},
		{"ArtifactAgeSLO", ArtifactAgeSLO, 7200.0},
		{"HealthScoreSLO", HealthScoreSLO, 0.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.value, tt.expected)
			}
		})
	}
}

func TestUpdateRefreshSuccessRatio(t *testing.T) {
	// Reset metric before test
	SLORefreshSuccess.Set(0)

	testValue := 0.98
	UpdateRefreshSuccessRatio(testValue)

	metric := &io_prometheus_client.Metric{}
	if err := SLORefreshSuccess.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	got := metric.GetGauge().GetValue()
	if got != testValue {
		t.Errorf("SLORefreshSuccess = %v, want %v", got, testValue)
	}
}

func TestUpdateArtifactAge(t *testing.T) {
	// Reset metric before test
	SLOArtifactAge.Set(0)

	testValue := 1800.0
	UpdateArtifactAge(testValue)

	metric := &io_prometheus_client.Metric{}
	if err := SLOArtifactAge.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	got := metric.GetGauge().GetValue()
	if got != testValue {
		t.Errorf("SLOArtifactAge = %v, want %v", got, testValue)
	}
}

func TestUpdateHealthScoreRatio(t *testing.T) {
	// Reset metric before test
	SLOHealthScore.Set(0)

	testValue := 0.85
	UpdateHealthScoreRatio(testValue)

	metric := &io_prometheus_client.Metric{}
	if err := SLOHealthScore.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	got := metric.GetGauge().GetValue()
	if got != testValue {
		t.Errorf("SLOHealthScore = %v, want %v", got, testValue)
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		SLORefreshSuccess,
		SLOArtifactAge,
		SLOHealthScore,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		select {
		case d := <-desc:
			if d == nil {
				t.Error("metric descriptor is nil")
			}
		default:
			t.Error("no descriptor received")
		}
	}
}

func TestSLOMetricsCanBeObserved(t *testing.T) {
	// Set test values
	UpdateRefreshSuccessRatio(0.97)
	UpdateArtifactAge(600)
	UpdateHealthScoreRatio(0.9)

	// Verify all metrics can be collected
	metrics := []prometheus.Collector{
		SLORefreshSuccess,
		SLOArtifactAge,
		SLOHealthScore,
	}

	for _, metric := range metrics {
		ch := make(chan prometheus.Metric, 1)
		metric.Collect(ch)
		select {
		case m := <-ch:
			if m == nil {
				t.Error("collected metric is nil")
			}
		default:
			t.Error("no metric collected")
		}
	}
}

func TestSLOTargetsAreReasonable(t *testing.T) {
	// Refresh success target should be between 50% and 100%
	if RefreshSuccessSLO < 0.5 || RefreshSuccessSLO > 1.0 {
		t.Errorf("RefreshSuccessSLO = %v, should be between 0.5 and 1.0", RefreshSuccessSLO)
	}

	// Artifact age ceiling should be positive and under a day
	if ArtifactAgeSLO <= 0 || ArtifactAgeSLO > 86400 {
		t.Errorf("ArtifactAgeSLO = %v, should be between 0 and 86400 seconds", ArtifactAgeSLO)
	}

	// Health score target should be a valid ratio
	if HealthScoreSLO <= 0 || HealthScoreSLO > 1.0 {
		t.Errorf("HealthScoreSLO = %v, should be between 0 and 1", HealthScoreSLO)
	}
}
