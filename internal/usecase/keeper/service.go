// Package keeper is the orchestration layer tying the error tracker,
// health scorer, circuit breaker, artifact store, and resource manager
// together. It is the entry point for consumer reports ("I just failed
// using this artifact") and for the on-demand operations the surrounding
// transport exposes.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"session-keeper/internal/domain/entity"
	"session-keeper/internal/errortrack"
	"session-keeper/internal/health"
	"session-keeper/internal/session"

	"github.com/sony/gobreaker"
)

// recoveredStatus is the health bucket at which an external success report
// is trusted enough to clear emergency mode eagerly, without waiting for
// the tracker's quiet-period auto-clear.
const recoveredStatus = health.StatusHealthy

// Resource is the managed browser session lifecycle the orchestrator
// drives.
type Resource interface {
	Start(ctx context.Context) error
	Restart(ctx context.Context, reason string) error
	RefreshAndExport(ctx context.Context) (int, error)
	ForceExport(ctx context.Context) (int, error)
	GetHealth(ctx context.Context) session.Health
	StartLogin(ctx context.Context) error
	StopLogin(ctx context.Context) (int, error)
	NeedsManualLogin() bool
	ManualSessionActive() bool
	LastRefreshAt() time.Time
}

// Breaker is the failure gate consulted before resource work.
type Breaker interface {
	IsOpen() bool
	State() gobreaker.State
}

// Store provides artifact reads and the static re-persist fallback.
type Store interface {
	LoadArtifact() (*entity.Artifact, error)
	Repersist() (int, error)
}

// Notifier delivers operator alerts. Failures are logged and swallowed.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Metrics receives orchestration events.
type Metrics interface {
	RecordRefresh(status string, seconds float64)
	RecordEmergencyActivation()
	SetHealthScore(score int)
}

// ReportErrorResult is returned to the consumer that reported a failure.
type ReportErrorResult struct {
	Verdict       errortrack.Verdict
	EmergencyMode bool
	RecentErrors  int
}

// Status is the freshness summary exposed to collaborators.
type Status struct {
	Score               int
	Health              health.Status
	BreakerState        string
	EmergencyMode       bool
	ArtifactValid       bool
	ArtifactRecords     int
	RequiredRecords     int
	NearestExpiry       time.Duration
	NearestExpiryKnown  bool
	LastRefreshAt       time.Time
	NeedsManualLogin    bool
	ManualSessionActive bool

	// RecommendRefresh advises refreshing ahead of the normal cadence;
	// PreferStoredArtifact advises serving the stored copy instead of
	// risking further refresh attempts. Both derive from the score.
	RecommendRefresh     bool
	PreferStoredArtifact bool
}

// Service is the keeper's orchestration facade.
type Service interface {
	// ReportError records one consumer-reported artifact failure.
	//
	// The report always penalizes the health score. Qualifying kinds feed
	// the error tracker; a triggered verdict runs one out-of-band recovery
	// attempt through the resource manager, degrading to a static
	// re-persist of the stored artifact when the circuit breaker is open
	// or the refresh fails.
	ReportError(ctx context.Context, kind, errContext string) ReportErrorResult

	// ReportSuccess records one consumer-reported artifact success and
	// returns the resulting health bucket. A score back in the healthy
	// bucket clears emergency mode eagerly.
	ReportSuccess(ctx context.Context) health.Status

	// ForceExport reads the live resource state and persists it on demand.
	ForceExport(ctx context.Context) (int, error)

	// ForceRestart restarts the managed resource on demand.
	ForceRestart(ctx context.Context) error

	// GetStatus returns the freshness summary for the current artifact.
	GetStatus(ctx context.Context) Status

	// GetHealth returns the resource health snapshot.
	GetHealth(ctx context.Context) session.Health

	// StartLogin opens an exclusive manual login session.
	StartLogin(ctx context.Context) error

	// StopLogin ends the manual login session, exporting whatever the
	// login resource holds. A successful export resets the health score
	// and clears emergency mode.
	StopLogin(ctx context.Context) (int, error)
}

type service struct {
	mgr      Resource
	breaker  Breaker
	store    Store
	scorer   *health.Scorer
	tracker  *errortrack.Tracker
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger

	mu          sync.Mutex
	inEmergency bool // last observed tracker state, for edge-triggered alerts
}

// NewService wires the orchestrator. notifier and metrics may be the
// no-op implementations.
func NewService(mgr Resource, br Breaker, st Store, scorer *health.Scorer, tracker *errortrack.Tracker, n Notifier, m Metrics, logger *slog.Logger) Service {
	return &service{
		mgr:      mgr,
		breaker:  br,
		store:    st,
		scorer:   scorer,
		tracker:  tracker,
		notifier: n,
		metrics:  m,
		logger:   logger,
	}
}

// ReportError implements Service.ReportError.
func (s *service) ReportError(ctx context.Context, kind, errContext string) ReportErrorResult {
	k := entity.ParseReportKind(kind)

	s.scorer.RecordFailure(k)
	s.metrics.SetHealthScore(s.scorer.Score())

	res := s.tracker.RecordError(k, errContext)

	s.logger.Info("error report recorded",
		slog.String("kind", string(k)),
		slog.String("verdict", string(res.Verdict)),
		slog.Bool("emergency", res.EmergencyMode),
		slog.Int("recent_errors", res.RecentCount),
		slog.Int("score", s.scorer.Score()))

	if res.Verdict != errortrack.VerdictTriggered {
		return ReportErrorResult{Verdict: res.Verdict, EmergencyMode: res.EmergencyMode, RecentErrors: res.RecentCount}
	}

	if !res.EmergencyMode {
		// Tracker may have auto-cleared during a quiet period; re-arm the
		// edge trigger so the next declaration alerts again.
		s.clearEmergency()
	}

	if res.EmergencyMode && s.markEmergency() {
		s.metrics.RecordEmergencyActivation()
		s.notify(ctx, fmt.Sprintf("emergency mode declared after %d recent credential failures", res.RecentCount))
	}

	if err := s.attemptRecovery(ctx); err != nil {
		s.logger.Error("emergency recovery failed", slog.Any("error", err))
		s.notify(ctx, fmt.Sprintf("emergency recovery failed: %v", err))
	}

	return ReportErrorResult{Verdict: res.Verdict, EmergencyMode: res.EmergencyMode, RecentErrors: res.RecentCount}
}

// attemptRecovery runs one out-of-band refresh. The breaker-open path and
// the refresh-failed path both degrade to re-persisting the stored
// artifact so consumers keep reading the best known state.
func (s *service) attemptRecovery(ctx context.Context) error {
	if s.mgr.ManualSessionActive() {
		s.logger.Info("skipping recovery, manual login session active")
		return nil
	}

	if err := s.mgr.Start(ctx); err != nil {
		s.logger.Warn("resource start failed during recovery", slog.Any("error", err))
		return s.fallbackRepersist(fmt.Errorf("resource start: %w", err))
	}

	if s.breaker.IsOpen() {
		s.logger.Warn("circuit breaker open, serving stored artifact")
		if _, err := s.store.Repersist(); err != nil {
			return fmt.Errorf("static fallback with breaker open: %w", err)
		}
		s.metrics.RecordRefresh("fallback", 0)
		return nil
	}

	if s.scorer.ShouldPreferDegradedMode() {
		// At a failing score another refresh is more likely to burn the
		// session than to save it. Serve the stored copy and wait for
		// success reports or a manual login to restore the reputation.
		s.logger.Warn("score too low to risk a refresh, serving stored artifact",
			slog.Int("score", s.scorer.Score()))
		if _, err := s.store.Repersist(); err != nil {
			return fmt.Errorf("static fallback at failing score: %w", err)
		}
		s.metrics.RecordRefresh("fallback", 0)
		return nil
	}

	started := time.Now()
	count, err := s.mgr.RefreshAndExport(ctx)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		s.metrics.RecordRefresh("failure", elapsed)
		return s.fallbackRepersist(fmt.Errorf("emergency refresh: %w", err))
	}

	s.scorer.RecordRefreshSuccess()
	s.metrics.SetHealthScore(s.scorer.Score())
	s.metrics.RecordRefresh("success", elapsed)
	s.logger.Info("emergency refresh succeeded",
		slog.Int("records", count),
		slog.Int("score", s.scorer.Score()))
	return nil
}

// fallbackRepersist is the last resort before declaring total failure:
// push the stored artifact back out to every tier.
func (s *service) fallbackRepersist(cause error) error {
	count, err := s.store.Repersist()
	if err != nil {
		return fmt.Errorf("%w (fallback re-persist also failed: %v)", cause, err)
	}
	s.logger.Warn("recovered by re-persisting stored artifact",
		slog.Int("records", count),
		slog.Any("cause", cause))
	s.metrics.RecordRefresh("fallback", 0)
	return nil
}

// ReportSuccess implements Service.ReportSuccess.
func (s *service) ReportSuccess(ctx context.Context) health.Status {
	s.scorer.RecordSuccess()
	s.metrics.SetHealthScore(s.scorer.Score())

	status := s.scorer.Status()
	if status == recoveredStatus && s.tracker.InEmergency() {
		s.tracker.Clear()
		s.clearEmergency()
		s.logger.Info("emergency mode cleared by recovered health",
			slog.Int("score", s.scorer.Score()))
	}
	return status
}

// ForceExport implements Service.ForceExport.
func (s *service) ForceExport(ctx context.Context) (int, error) {
	return s.mgr.ForceExport(ctx)
}

// ForceRestart implements Service.ForceRestart.
func (s *service) ForceRestart(ctx context.Context) error {
	return s.mgr.Restart(ctx, "manual")
}

// GetStatus implements Service.GetStatus.
func (s *service) GetStatus(ctx context.Context) Status {
	snap := s.scorer.Snapshot()

	st := Status{
		Score:                snap.Score,
		Health:               snap.Status,
		BreakerState:         s.breaker.State().String(),
		EmergencyMode:        s.tracker.InEmergency(),
		LastRefreshAt:        s.mgr.LastRefreshAt(),
		NeedsManualLogin:     s.mgr.NeedsManualLogin(),
		ManualSessionActive:  s.mgr.ManualSessionActive(),
		RecommendRefresh:     s.scorer.ShouldProactivelyRefresh(),
		PreferStoredArtifact: s.scorer.ShouldPreferDegradedMode(),
	}

	if art, err := s.store.LoadArtifact(); err == nil {
		st.ArtifactValid = true
		st.ArtifactRecords = art.Len()
		st.RequiredRecords = art.RequiredCount()
		st.NearestExpiry, st.NearestExpiryKnown = art.NearestRequiredExpiry(time.Now())
	}

	return st
}

// GetHealth implements Service.GetHealth.
func (s *service) GetHealth(ctx context.Context) session.Health {
	return s.mgr.GetHealth(ctx)
}

// StartLogin implements Service.StartLogin.
func (s *service) StartLogin(ctx context.Context) error {
	return s.mgr.StartLogin(ctx)
}

// StopLogin implements Service.StopLogin.
func (s *service) StopLogin(ctx context.Context) (int, error) {
	count, err := s.mgr.StopLogin(ctx)
	if err == nil && count > 0 {
		// Fresh login completed: the old reputation no longer applies.
		s.scorer.Reset()
		s.tracker.Clear()
		s.clearEmergency()
		s.metrics.SetHealthScore(s.scorer.Score())
		s.logger.Info("health state reset after manual login", slog.Int("records", count))
	}
	return count, err
}

// markEmergency flips the edge-trigger flag, returning true only on the
// transition into emergency mode.
func (s *service) markEmergency() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inEmergency {
		return false
	}
	s.inEmergency = true
	return true
}

func (s *service) clearEmergency() {
	s.mu.Lock()
	s.inEmergency = false
	s.mu.Unlock()
}

func (s *service) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.logger.Warn("alert delivery failed", slog.Any("error", err))
	}
}
