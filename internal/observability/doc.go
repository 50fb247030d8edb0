// Package observability provides production-grade observability infrastructure
// including structured logging and Prometheus metrics.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO tracking for session reliability
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics recorders for the keeper
//   - slo: Service level objective gauges
package observability
