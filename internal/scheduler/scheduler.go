// Package scheduler runs the keeper's periodic loops: the adaptive refresh
// cycle with error-classified retry, the fast authentication probe, and the
// disaster re-persist pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"session-keeper/internal/domain/entity"
)

// Intervals between refresh cycles, picked from the time remaining on the
// nearest-expiring required record.
const (
	intervalCritical = 5 * time.Minute
	intervalWarning  = 15 * time.Minute
	intervalNormal   = 30 * time.Minute
	intervalRelaxed  = 60 * time.Minute

	criticalExpiry = 2 * time.Hour
	warningExpiry  = 12 * time.Hour
	relaxedExpiry  = 48 * time.Hour
)

const (
	networkRetries   = 3
	networkRetryWait = 5 * time.Second
	rateLimitWait    = 60 * time.Second
	maxAttempts      = 5
)

// Resource is the session-manager surface the scheduler drives.
type Resource interface {
	Start(ctx context.Context) error
	Restart(ctx context.Context, reason string) error
	RefreshAndExport(ctx context.Context) (int, error)
	ProbeAuthenticated(ctx context.Context) (bool, error)
	ManualSessionActive() bool
}

// Breaker is the circuit surface the scheduler consults.
type Breaker interface {
	IsOpen() bool
	RecordFailure()
}

// Notifier raises operator alerts. Failures are logged and swallowed.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Store is the artifact read surface the scheduler needs.
type Store interface {
	LoadArtifact() (*entity.Artifact, error)
	Repersist() (int, error)
}

// Tracker supplies the probe cadence.
type Tracker interface {
	ProbeInterval() time.Duration
}

// Health reports when the artifact's reputation calls for refreshing
// ahead of the expiry-derived cadence.
type Health interface {
	ShouldProactivelyRefresh() bool
}

// Metrics is the subset of keeper metrics the scheduler records.
type Metrics interface {
	RecordRefresh(status string, seconds float64)
}

// Scheduler drives the periodic loops. Construct with New and run each
// loop in its own goroutine.
type Scheduler struct {
	mgr      Resource
	store    Store
	breaker  Breaker
	tracker  Tracker
	health   Health
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger

	repersistEvery time.Duration

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error

	expiryAlerted bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithRepersistInterval overrides the cadence of the tier-healing loop.
func WithRepersistInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.repersistEvery = d
		}
	}
}

// WithHealth lets a sinking health score tighten the refresh cadence.
func WithHealth(h Health) Option {
	return func(s *Scheduler) {
		s.health = h
	}
}

// New creates a scheduler.
func New(mgr Resource, st Store, br Breaker, tr Tracker, n Notifier, m Metrics, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		mgr:            mgr,
		store:          st,
		breaker:        br,
		tracker:        tr,
		notifier:       n,
		metrics:        m,
		logger:         logger,
		repersistEvery: time.Hour,
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRefreshLoop runs refresh cycles until the context is canceled. The
// wait between cycles is re-derived from the artifact after every cycle;
// a plain timer loop is used because the period changes each round.
func (s *Scheduler) RunRefreshLoop(ctx context.Context) {
	for {
		interval := s.nextInterval()
		s.logger.Debug("next refresh cycle scheduled", "in", interval.String())

		if err := s.sleep(ctx, interval); err != nil {
			s.logger.Info("refresh loop stopped")
			return
		}
		s.RunCycle(ctx)
	}
}

// RunProbeLoop runs the cheap authentication probe until the context is
// canceled. The cadence tightens while the error tracker holds an
// emergency. Probe results are logged only: a consumer report is the
// authoritative signal, a flaky probe is not.
func (s *Scheduler) RunProbeLoop(ctx context.Context) {
	for {
		if err := s.sleep(ctx, s.tracker.ProbeInterval()); err != nil {
			s.logger.Info("probe loop stopped")
			return
		}
		if s.mgr.ManualSessionActive() || s.breaker.IsOpen() {
			continue
		}

		authed, err := s.mgr.ProbeAuthenticated(ctx)
		switch {
		case err != nil:
			s.logger.Debug("auth probe failed", "error", err)
		case !authed:
			s.logger.Warn("auth probe reports signed out; awaiting consumer confirmation")
		default:
			s.logger.Debug("auth probe ok")
		}
	}
}

// RunRepersistLoop periodically re-saves the best stored artifact to every
// tier, healing tiers lost to disk trouble.
func (s *Scheduler) RunRepersistLoop(ctx context.Context) {
	for {
		if err := s.sleep(ctx, s.repersistEvery); err != nil {
			s.logger.Info("repersist loop stopped")
			return
		}
		if n, err := s.store.Repersist(); err != nil {
			s.logger.Warn("repersist failed", "error", err)
		} else {
			s.logger.Debug("tiers repersisted", "tiers_ok", n)
		}
	}
}

// RunCycle performs one refresh cycle.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if s.mgr.ManualSessionActive() {
		s.logger.Debug("refresh cycle skipped: manual login session active")
		return
	}
	if s.breaker.IsOpen() {
		s.logger.Info("circuit open, serving stored artifact this cycle")
		return
	}

	if err := s.mgr.Start(ctx); err != nil {
		s.logger.Error("resource start failed", "error", err)
		s.breaker.RecordFailure()
		return
	}

	start := time.Now()
	if err := s.refreshWithRetry(ctx); err != nil {
		s.metrics.RecordRefresh("failure", time.Since(start).Seconds())
		s.logger.Error("refresh cycle failed", "error", err)
		return
	}
	s.metrics.RecordRefresh("success", time.Since(start).Seconds())
	s.checkExpiry(ctx)
}

// refreshWithRetry attempts refresh-and-export with a recovery strategy
// picked from each failure's classification. Every raised failure is
// classified exactly once, and the total attempt count is hard-bounded.
func (s *Scheduler) refreshWithRetry(ctx context.Context) error {
	networkTries := 0
	crashRestarted := false
	rateLimited := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := s.mgr.RefreshAndExport(ctx)
		if err == nil {
			return nil
		}

		kind := entity.Classify(err)
		s.logger.Warn("refresh attempt failed",
			"attempt", attempt,
			"kind", kind.String(),
			"error", err)

		switch kind {
		case entity.KindNetwork:
			networkTries++
			if networkTries >= networkRetries {
				return fmt.Errorf("network retries exhausted: %w", err)
			}
			if serr := s.sleep(ctx, networkRetryWait); serr != nil {
				return serr
			}

		case entity.KindResourceCrash:
			if crashRestarted {
				return fmt.Errorf("resource kept crashing: %w", err)
			}
			crashRestarted = true
			if rerr := s.mgr.Restart(ctx, "crash"); rerr != nil {
				return fmt.Errorf("restart after crash failed: %w", rerr)
			}

		case entity.KindSessionExpired:
			s.notify(ctx, "session expired: manual login required")
			return err

		case entity.KindValidation:
			if errors.Is(err, entity.ErrNoSession) {
				s.notify(ctx, "browser session lost its required records: manual login required")
			}
			// The prior artifact stays in place; nothing to retry.
			return err

		case entity.KindRateLimited:
			if rateLimited {
				return fmt.Errorf("still rate limited: %w", err)
			}
			rateLimited = true
			if serr := s.sleep(ctx, rateLimitWait); serr != nil {
				return serr
			}

		default:
			return err
		}
	}
	return fmt.Errorf("refresh attempts exhausted")
}

// nextInterval derives the wait before the next cycle from the artifact's
// nearest-expiring required record. No artifact or no fixed expiry means
// the normal cadence. A sinking health score overrides the expiry-derived
// wait with the critical one.
func (s *Scheduler) nextInterval() time.Duration {
	interval := intervalNormal
	if artifact, err := s.store.LoadArtifact(); err == nil {
		if left, ok := artifact.NearestRequiredExpiry(time.Now()); ok {
			interval = intervalFor(left)
		}
	}

	if s.health != nil && s.health.ShouldProactivelyRefresh() && interval > intervalCritical {
		s.logger.Info("refresh cadence tightened by low health score")
		return intervalCritical
	}
	return interval
}

func intervalFor(left time.Duration) time.Duration {
	switch {
	case left < criticalExpiry:
		return intervalCritical
	case left < warningExpiry:
		return intervalWarning
	case left < relaxedExpiry:
		return intervalNormal
	default:
		return intervalRelaxed
	}
}

// checkExpiry alerts once when the nearest required expiry enters the
// critical window, and re-arms after a refresh pushes it back out.
func (s *Scheduler) checkExpiry(ctx context.Context) {
	artifact, err := s.store.LoadArtifact()
	if err != nil {
		return
	}
	left, ok := artifact.NearestRequiredExpiry(time.Now())
	if !ok {
		return
	}

	if left < criticalExpiry {
		if !s.expiryAlerted {
			s.expiryAlerted = true
			s.notify(ctx, fmt.Sprintf("session records expire in %s despite refresh", left.Round(time.Minute)))
		}
		return
	}
	s.expiryAlerted = false
}

func (s *Scheduler) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.logger.Warn("alert delivery failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
