// Package health maintains a bounded reputation score for the session
// artifact, driven by consumer success/failure reports and refresh outcomes.
package health

import (
	"sync"
	"time"

	"session-keeper/internal/domain/entity"
)

// Status buckets derived from the score.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
	StatusFailing  Status = "failing"
)

const (
	maxScore = 100
	minScore = 0

	successReward = 5
	refreshReward = 20

	qualifyingPenalty = 15
	basePenalty       = 10
	streakPenalty     = 5
)

// Snapshot is a point-in-time view of the scorer state.
type Snapshot struct {
	Score               int
	Status              Status
	Successes           int
	Failures            int
	ConsecutiveFailures int
	LastSuccessAt       time.Time
	LastFailureAt       time.Time
}

// Scorer tracks the artifact's health score in [0,100]. Safe for
// concurrent use. A fresh scorer starts at 100.
type Scorer struct {
	mu                  sync.Mutex
	score               int
	successes           int
	failures            int
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
}

// NewScorer creates a scorer at full health.
func NewScorer() *Scorer {
	return &Scorer{score: maxScore}
}

// RecordSuccess rewards a consumer success report and clears the failure
// streak.
func (s *Scorer) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = clamp(s.score + successReward)
	s.successes++
	s.consecutiveFailures = 0
	s.lastSuccessAt = time.Now()
}

// RecordRefreshSuccess rewards a successful artifact refresh, worth more
// than a single consumer success, and clears the failure streak.
func (s *Scorer) RecordRefreshSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = clamp(s.score + refreshReward)
	s.consecutiveFailures = 0
	s.lastSuccessAt = time.Now()
}

// RecordFailure applies an escalating penalty: credential-level kinds cost
// more, and every consecutive failure in the streak adds to the next
// penalty.
func (s *Scorer) RecordFailure(kind entity.ReportKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	penalty := basePenalty
	if kind.Qualifying() {
		penalty = qualifyingPenalty
	}
	penalty += streakPenalty * s.consecutiveFailures

	s.score = clamp(s.score - penalty)
	s.failures++
	s.consecutiveFailures++
	s.lastFailureAt = time.Now()
}

// Score returns the current score.
func (s *Scorer) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Status buckets the current score.
func (s *Scorer) Status() Status {
	return statusFor(s.Score())
}

// ShouldProactivelyRefresh reports whether the score has sunk low enough
// that the scheduler should refresh ahead of its normal cadence.
func (s *Scorer) ShouldProactivelyRefresh() bool {
	return s.Score() < 50
}

// ShouldPreferDegradedMode reports whether the score is so low that
// serving the stored artifact beats risking more refresh attempts.
func (s *Scorer) ShouldPreferDegradedMode() bool {
	return s.Score() < 30
}

// Reset restores full health. Called after a confirmed fresh manual login.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = maxScore
	s.successes = 0
	s.failures = 0
	s.consecutiveFailures = 0
}

// Snapshot returns a consistent copy of the current state.
func (s *Scorer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Score:               s.score,
		Status:              statusFor(s.score),
		Successes:           s.successes,
		Failures:            s.failures,
		ConsecutiveFailures: s.consecutiveFailures,
		LastSuccessAt:       s.lastSuccessAt,
		LastFailureAt:       s.lastFailureAt,
	}
}

func statusFor(score int) Status {
	switch {
	case score >= 70:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	case score >= 30:
		return StatusCritical
	default:
		return StatusFailing
	}
}

func clamp(v int) int {
	if v > maxScore {
		return maxScore
	}
	if v < minScore {
		return minScore
	}
	return v
}
