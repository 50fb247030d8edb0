package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that no valid artifact could be resolved from any source
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that artifact validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrNoSession indicates the browser state carried no required session records
	ErrNoSession = errors.New("no session records in browser state")

	// ErrResourceBusy indicates an exclusive manual session blocks the operation
	ErrResourceBusy = errors.New("resource busy with manual session")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which check failed.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Kind classifies a failure raised by a resource operation. The scheduler
// uses it to pick a recovery strategy (retry, restart, give up).
type Kind int

const (
	// KindUnknown is any failure that matches no other classification.
	KindUnknown Kind = iota

	// KindNetwork covers timeouts, refused connections and DNS failures.
	KindNetwork

	// KindResourceCrash covers a dead or disconnected browser process.
	KindResourceCrash

	// KindSessionExpired covers sign-out and unauthorized responses.
	// Never auto-retried: only a manual login can fix it.
	KindSessionExpired

	// KindRateLimited covers throttling responses from the remote site.
	KindRateLimited

	// KindValidation covers a malformed or incomplete refreshed artifact.
	KindValidation

	// KindExhaustion covers memory or uptime ceilings on the resource.
	KindExhaustion
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindResourceCrash:
		return "resource_crash"
	case KindSessionExpired:
		return "session_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindExhaustion:
		return "exhaustion"
	default:
		return "unknown"
	}
}

var (
	networkKeywords = []string{"timeout", "connection", "network", "dns", "refused", "reset"}
	crashKeywords   = []string{"disconnected", "chrome", "driver", "crashed", "dead", "websocket"}
	sessionKeywords = []string{"sign in", "signed out", "logged out", "login", "unauthorized", "forbidden"}
	rateKeywords    = []string{"429", "rate limit", "too many"}
)

// Classify maps a raised error to a Kind by inspecting its message.
// Classification happens once per raised failure; callers must not
// re-classify on every retry attempt.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrNoSession) {
		return KindValidation
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return KindNetwork
		}
	}
	for _, kw := range crashKeywords {
		if strings.Contains(msg, kw) {
			return KindResourceCrash
		}
	}
	for _, kw := range sessionKeywords {
		if strings.Contains(msg, kw) {
			return KindSessionExpired
		}
	}
	for _, kw := range rateKeywords {
		if strings.Contains(msg, kw) {
			return KindRateLimited
		}
	}
	return KindUnknown
}
