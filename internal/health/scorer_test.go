package health

import (
	"testing"

	"session-keeper/internal/domain/entity"
)

func TestNewScorerStartsAtFullHealth(t *testing.T) {
	s := NewScorer()

	if got := s.Score(); got != 100 {
		t.Errorf("expected initial score=100, got %d", got)
	}
	if got := s.Status(); got != StatusHealthy {
		t.Errorf("expected status=healthy, got %s", got)
	}
}

func TestRecordFailurePenalties(t *testing.T) {
	tests := []struct {
		name string
		kind entity.ReportKind
		want int
	}{
		{"invalid credentials costs 15", entity.ReportInvalidCredentials, 85},
		{"bot detected costs 15", entity.ReportBotDetected, 85},
		{"generic failure costs 10", entity.ReportDownloadFailed, 90},
		{"unknown failure costs 10", entity.ReportUnknown, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer()
			s.RecordFailure(tt.kind)
			if got := s.Score(); got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecordFailureEscalatesWithStreak(t *testing.T) {
	s := NewScorer()

	// 100 -15, -20, -25: streak adds 5 per prior consecutive failure.
	s.RecordFailure(entity.ReportInvalidCredentials)
	s.RecordFailure(entity.ReportInvalidCredentials)
	s.RecordFailure(entity.ReportInvalidCredentials)

	if got := s.Score(); got != 40 {
		t.Errorf("score after escalating streak = %d, want 40", got)
	}
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 3 {
		t.Errorf("consecutiveFailures = %d, want 3", snap.ConsecutiveFailures)
	}
}

func TestSuccessResetsStreakRegardlessOfLength(t *testing.T) {
	s := NewScorer()
	for i := 0; i < 7; i++ {
		s.RecordFailure(entity.ReportDownloadFailed)
	}
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 7 {
		t.Fatalf("consecutiveFailures = %d, want 7", snap.ConsecutiveFailures)
	}

	s.RecordSuccess()
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 {
		t.Errorf("consecutiveFailures after success = %d, want 0", snap.ConsecutiveFailures)
	}
}

func TestScoreAlwaysBounded(t *testing.T) {
	s := NewScorer()

	// Drive the score hard toward both bounds with a mixed event sequence.
	for i := 0; i < 50; i++ {
		s.RecordFailure(entity.ReportInvalidCredentials)
		if got := s.Score(); got < 0 || got > 100 {
			t.Fatalf("score out of bounds after failure: %d", got)
		}
	}
	for i := 0; i < 50; i++ {
		s.RecordRefreshSuccess()
		s.RecordSuccess()
		if got := s.Score(); got < 0 || got > 100 {
			t.Fatalf("score out of bounds after success: %d", got)
		}
	}
	if got := s.Score(); got != 100 {
		t.Errorf("expected score saturated at 100, got %d", got)
	}
}

func TestRefreshSuccessReward(t *testing.T) {
	s := NewScorer()
	s.RecordFailure(entity.ReportInvalidCredentials)
	s.RecordFailure(entity.ReportInvalidCredentials)
	// 100 -15 -20 = 65

	s.RecordRefreshSuccess()
	if got := s.Score(); got != 85 {
		t.Errorf("score after refresh success = %d, want 85", got)
	}
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 {
		t.Errorf("consecutiveFailures = %d, want 0", snap.ConsecutiveFailures)
	}
}

func TestStatusBuckets(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{100, StatusHealthy},
		{70, StatusHealthy},
		{69, StatusDegraded},
		{50, StatusDegraded},
		{49, StatusCritical},
		{30, StatusCritical},
		{29, StatusFailing},
		{0, StatusFailing},
	}

	for _, tt := range tests {
		if got := statusFor(tt.score); got != tt.want {
			t.Errorf("statusFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDerivedFlags(t *testing.T) {
	s := NewScorer()
	if s.ShouldProactivelyRefresh() {
		t.Error("healthy scorer must not request proactive refresh")
	}

	// 100 -15 -20 -25 = 40 → proactive refresh, not yet degraded mode.
	for i := 0; i < 3; i++ {
		s.RecordFailure(entity.ReportInvalidCredentials)
	}
	if !s.ShouldProactivelyRefresh() {
		t.Error("expected proactive refresh below 50")
	}
	if s.ShouldPreferDegradedMode() {
		t.Error("degraded mode should not trigger at 40")
	}

	// 40 -30 = 10 → degraded mode.
	s.RecordFailure(entity.ReportInvalidCredentials)
	if !s.ShouldPreferDegradedMode() {
		t.Error("expected degraded mode below 30")
	}
}

func TestReset(t *testing.T) {
	s := NewScorer()
	s.RecordFailure(entity.ReportBotDetected)
	s.RecordFailure(entity.ReportBotDetected)

	s.Reset()

	snap := s.Snapshot()
	if snap.Score != 100 || snap.ConsecutiveFailures != 0 || snap.Failures != 0 {
		t.Errorf("reset left state %+v", snap)
	}
}
