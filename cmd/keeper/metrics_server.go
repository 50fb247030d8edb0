package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"session-keeper/internal/usecase/keeper"
)

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status"`
}

// SessionStatusResponse is the readiness probe body: the artifact
// freshness summary plus the runtime flags an operator cares about.
type SessionStatusResponse struct {
	Score               int       `json:"score"`
	Health              string    `json:"health"`
	BreakerState        string    `json:"breaker_state"`
	EmergencyMode       bool      `json:"emergency_mode"`
	ArtifactValid       bool      `json:"artifact_valid"`
	ArtifactRecords     int       `json:"artifact_records"`
	RequiredRecords     int       `json:"required_records"`
	NearestExpirySec    int64     `json:"nearest_expiry_seconds,omitempty"`
	LastRefreshAt       time.Time `json:"last_refresh_at,omitzero"`
	NeedsManualLogin    bool      `json:"needs_manual_login"`
	ManualSessionActive bool      `json:"manual_session_active"`

	RecommendRefresh     bool `json:"recommend_refresh"`
	PreferStoredArtifact bool `json:"prefer_stored_artifact"`
}

// startMetricsServer starts the Prometheus metrics HTTP server.
// It runs in a background goroutine and shuts down when ctx is canceled.
//
// Endpoints:
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /health - liveness probe, always 200 OK
//   - GET /health/session - readiness probe, 503 while the stored
//     artifact is unusable or a manual login is required
func startMetricsServer(ctx context.Context, logger *slog.Logger, svc keeper.Service, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/session", sessionHealthHandler(svc))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// healthHandler handles GET /health (liveness probe).
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// sessionHealthHandler creates the GET /health/session handler
// (readiness probe). Ready means a usable artifact is on disk and no
// manual login is pending; emergency mode alone does not fail readiness
// because the stored artifact is still being served.
func sessionHealthHandler(svc keeper.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := svc.GetStatus(r.Context())

		resp := SessionStatusResponse{
			Score:                st.Score,
			Health:               string(st.Health),
			BreakerState:         st.BreakerState,
			EmergencyMode:        st.EmergencyMode,
			ArtifactValid:        st.ArtifactValid,
			ArtifactRecords:      st.ArtifactRecords,
			RequiredRecords:      st.RequiredRecords,
			LastRefreshAt:        st.LastRefreshAt,
			NeedsManualLogin:     st.NeedsManualLogin,
			ManualSessionActive:  st.ManualSessionActive,
			RecommendRefresh:     st.RecommendRefresh,
			PreferStoredArtifact: st.PreferStoredArtifact,
		}
		if st.NearestExpiryKnown {
			resp.NearestExpirySec = int64(st.NearestExpiry.Seconds())
		}

		statusCode := http.StatusOK
		if !st.ArtifactValid || st.NeedsManualLogin {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
