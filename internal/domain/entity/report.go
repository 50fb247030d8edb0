package entity

import "strings"

// ReportKind is the failure category an external consumer attaches to an
// error report. It is distinct from Kind: Kind classifies failures raised
// inside a resource operation, ReportKind describes how the artifact failed
// out in the field.
type ReportKind string

const (
	// ReportInvalidCredentials means the consumer was rejected as
	// unauthenticated while using the artifact.
	ReportInvalidCredentials ReportKind = "invalid_credentials"

	// ReportBotDetected means the remote site challenged the consumer as
	// automated traffic.
	ReportBotDetected ReportKind = "bot_detected"

	// ReportDownloadFailed is a generic consumer-side failure.
	ReportDownloadFailed ReportKind = "download_failed"

	// ReportUnknown is any report the keeper cannot interpret.
	ReportUnknown ReportKind = "unknown"
)

// Qualifying reports whether the kind counts toward emergency detection
// and carries the heavier health penalty. Only credential-level failures
// qualify; generic download errors do not indicate a rotten session.
func (k ReportKind) Qualifying() bool {
	return k == ReportInvalidCredentials || k == ReportBotDetected
}

// ParseReportKind normalizes a consumer-supplied kind string.
func ParseReportKind(s string) ReportKind {
	switch ReportKind(strings.ToLower(strings.TrimSpace(s))) {
	case ReportInvalidCredentials:
		return ReportInvalidCredentials
	case ReportBotDetected:
		return ReportBotDetected
	case ReportDownloadFailed:
		return ReportDownloadFailed
	default:
		return ReportUnknown
	}
}
