// Package notifier provides the alerting channel for keeper events such as
// emergency-mode entry, circuit-breaker opens, and lost sessions. It defines
// the Notifier interface which allows different delivery mechanisms (webhook,
// no-op) to be used interchangeably through dependency injection.
//
// Alerts are fire-and-forget from the caller's perspective: delivery
// failures are logged by the implementation and surfaced as an error the
// caller may ignore.
package notifier

import "context"

// Notifier sends operator alerts.
// Implementations handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// Notify delivers one alert message.
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with backoff
	//   - Respect context cancellation
	Notify(ctx context.Context, message string) error
}
