package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket in front of alert delivery. Alerts are
// bursty by nature (one incident raises several at once), so a small
// burst passes immediately and the sustained rate keeps a flapping
// component from drowning the webhook channel.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing alertsPerSecond sustained
// with up to burst alerts passing immediately.
//
// Example:
//
//	limiter := NewRateLimiter(0.1, 3) // 1 alert / 10s, burst of 3
func NewRateLimiter(alertsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(alertsPerSecond), burst),
	}
}

// Allow blocks until a token is available or the context is canceled.
// Call it before each delivery attempt.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
