// Package resilience holds the fault tolerance building blocks that keep
// the session runtime serving during failures.
//
// The circuitbreaker subpackage guards the expensive browser refresh
// path: five consecutive mint failures open the circuit, and while it is
// open the keeper degrades to serving the stored artifact instead of
// hammering a broken sign-in flow.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.RefreshConfig(), logger)
//	if cb.CanExecute() {
//	    if err := refresh(ctx); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package resilience
