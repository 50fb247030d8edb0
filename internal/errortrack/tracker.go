// Package errortrack detects credential-failure patterns in consumer
// reports and declares an emergency mode that tightens the keeper's probe
// cadence until the session proves healthy again.
package errortrack

import (
	"log/slog"
	"sync"
	"time"

	"session-keeper/internal/domain/entity"
)

// Verdict is the outcome of recording one error report.
type Verdict string

const (
	// VerdictIgnored means the kind does not count toward detection.
	VerdictIgnored Verdict = "ignored"

	// VerdictCooldown means a qualifying report arrived too soon after the
	// previous one and was dropped to avoid double-counting bursts.
	VerdictCooldown Verdict = "cooldown"

	// VerdictTriggered means the report was recorded and the detection
	// rule was evaluated.
	VerdictTriggered Verdict = "triggered"
)

// Result carries the verdict plus the detection state after evaluation.
type Result struct {
	Verdict       Verdict
	EmergencyMode bool
	RecentCount   int
}

const (
	windowCapacity = 100

	defaultCooldown        = 30 * time.Second
	defaultDetectWindow    = 5 * time.Minute
	defaultDetectCount     = 3
	defaultClearAfter      = 10 * time.Minute
	defaultProbeInterval   = 5 * time.Minute
	emergencyProbeInterval = 30 * time.Second
)

type record struct {
	at      time.Time
	kind    entity.ReportKind
	context string
}

// Tracker is the sliding-window detector. Safe for concurrent use.
type Tracker struct {
	mu                 sync.Mutex
	window             []record
	lastRecordedAt     time.Time
	emergency          bool
	emergencyStartedAt time.Time

	cooldown     time.Duration
	detectWindow time.Duration
	detectCount  int
	clearAfter   time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCooldown overrides the minimum spacing between counted reports.
// Zero disables the cooldown.
func WithCooldown(d time.Duration) Option {
	return func(t *Tracker) {
		t.cooldown = d
	}
}

// WithDetectionRule overrides how many qualifying errors inside the window
// declare an emergency.
func WithDetectionRule(count int, window time.Duration) Option {
	return func(t *Tracker) {
		t.detectCount = count
		t.detectWindow = window
	}
}

// New creates a tracker with the default detection rule: three qualifying
// errors inside five minutes declare an emergency, ten quiet minutes clear
// it again.
func New(logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		cooldown:     defaultCooldown,
		detectWindow: defaultDetectWindow,
		detectCount:  defaultDetectCount,
		clearAfter:   defaultClearAfter,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordError records one consumer error report and evaluates the
// detection rule. Non-qualifying kinds are ignored; qualifying kinds
// arriving within the cooldown of the previous recorded one return a
// cooldown verdict without being counted.
func (t *Tracker) RecordError(kind entity.ReportKind, context string) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.maybeAutoClear(now)

	if !kind.Qualifying() {
		return Result{Verdict: VerdictIgnored, EmergencyMode: t.emergency, RecentCount: t.recentCount(now)}
	}

	if !t.lastRecordedAt.IsZero() && now.Sub(t.lastRecordedAt) < t.cooldown {
		return Result{Verdict: VerdictCooldown, EmergencyMode: t.emergency, RecentCount: t.recentCount(now)}
	}

	t.append(record{at: now, kind: kind, context: context})
	t.lastRecordedAt = now

	count := t.recentCount(now)
	if count >= t.detectCount && !t.emergency {
		t.emergency = true
		t.emergencyStartedAt = now
		t.logger.Warn("emergency mode declared",
			"recent_errors", count,
			"window", t.detectWindow.String())
	}

	return Result{Verdict: VerdictTriggered, EmergencyMode: t.emergency, RecentCount: count}
}

// InEmergency reports whether emergency mode is active, applying the lazy
// quiet-period auto-clear first.
func (t *Tracker) InEmergency() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeAutoClear(t.now())
	return t.emergency
}

// Clear exits emergency mode after a confirmed recovery (manual login or a
// health-recovered signal). Idempotent: a no-op when not in emergency.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.emergency {
		return
	}
	t.emergency = false
	t.emergencyStartedAt = time.Time{}
	t.logger.Info("emergency mode cleared")
}

// ProbeInterval returns the liveness-probe cadence: tight while in
// emergency, relaxed otherwise.
func (t *Tracker) ProbeInterval() time.Duration {
	if t.InEmergency() {
		return emergencyProbeInterval
	}
	return defaultProbeInterval
}

// RecentCount returns the number of qualifying errors inside the
// detection window.
func (t *Tracker) RecentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recentCount(t.now())
}

func (t *Tracker) maybeAutoClear(now time.Time) {
	if !t.emergency {
		return
	}
	if t.lastRecordedAt.IsZero() || now.Sub(t.lastRecordedAt) >= t.clearAfter {
		t.emergency = false
		t.emergencyStartedAt = time.Time{}
		t.logger.Info("emergency mode auto-cleared after quiet period")
	}
}

func (t *Tracker) append(r record) {
	t.window = append(t.window, r)
	if len(t.window) > windowCapacity {
		t.window = t.window[len(t.window)-windowCapacity:]
	}
}

func (t *Tracker) recentCount(now time.Time) int {
	cutoff := now.Add(-t.detectWindow)
	n := 0
	for _, r := range t.window {
		if r.at.After(cutoff) {
			n++
		}
	}
	return n
}
