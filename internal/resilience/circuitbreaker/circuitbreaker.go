// Package circuitbreaker guards the expensive browser refresh path. It uses
// the github.com/sony/gobreaker library to prevent hammering a failing mint.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and alerts
	Name string

	// FailureThreshold is the number of consecutive failures that trips
	// the circuit. Any success resets the run.
	FailureThreshold uint32

	// ResetTimeout is how long to wait in open state before allowing a
	// single trial operation
	ResetTimeout time.Duration
}

// RefreshConfig returns the configuration used for the browser refresh
// circuit: five consecutive failures open it, recovery is probed after ten
// minutes.
func RefreshConfig() Config {
	return Config{
		Name:             "browser-refresh",
		FailureThreshold: 5,
		ResetTimeout:     600 * time.Second,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with a record-style surface:
// callers gate operations with CanExecute and report outcomes afterwards
// instead of running the operation inside the breaker.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
	logger  *slog.Logger

	mu     sync.Mutex
	onOpen func(name string)
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config, logger *slog.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// A single trial in half-open; its outcome decides closed vs open.
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if to == gobreaker.StateOpen {
				cb.notifyOpen(name)
			}
		},
	}
	cb.breaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// OnOpen registers a callback fired exactly once per transition into the
// open state. Used to raise an operator alert without coupling this
// package to the notifier.
func (cb *CircuitBreaker) OnOpen(fn func(name string)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onOpen = fn
}

func (cb *CircuitBreaker) notifyOpen(name string) {
	cb.mu.Lock()
	fn := cb.onOpen
	cb.mu.Unlock()
	if fn != nil {
		fn(name)
	}
}

// CanExecute reports whether an expensive operation may run now. In the
// open state it returns false until the reset timeout elapses, after which
// the breaker moves to half-open and a single trial is allowed.
func (cb *CircuitBreaker) CanExecute() bool {
	return cb.breaker.State() != gobreaker.StateOpen
}

// RecordSuccess reports a successful operation. In half-open state this
// closes the circuit; in closed state it resets the consecutive-failure run.
// A success reported while the circuit is open is dropped: Execute refuses
// it with ErrOpenState, the caller raced the trip, and recovery stays with
// the reset timeout rather than a stale success.
func (cb *CircuitBreaker) RecordSuccess() {
	//nolint:errcheck // an ErrOpenState refusal is the intended drop
	cb.breaker.Execute(func() (interface{}, error) {
		return nil, nil
	})
}

// RecordFailure reports a failed operation. Enough consecutive failures
// trip the circuit; a half-open trial failure reopens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	//nolint:errcheck // the sentinel error only feeds the failure counter
	cb.breaker.Execute(func() (interface{}, error) {
		return nil, errRecordedFailure
	})
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

type recordedFailure struct{}

func (recordedFailure) Error() string { return "recorded failure" }

var errRecordedFailure = recordedFailure{}
