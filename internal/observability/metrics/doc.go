// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes keeper metrics including:
//   - Refresh cycle metrics (count, duration, outcome)
//   - Circuit breaker and emergency-mode activity
//   - Resource restarts and export rejections
//   - Artifact state (record count, last refresh timestamp)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "session-keeper/internal/observability/metrics"
//
//	func refresh(m *metrics.KeeperMetrics) {
//	    start := time.Now()
//	    // ... refresh the session ...
//	    m.RecordRefresh("success", time.Since(start).Seconds())
//	}
package metrics
