// Package circuitbreaker tracks the health of the shared cache backend.
//
// The status cache consults a breaker before every Redis call. After
// failureThreshold consecutive failures the breaker opens and callers go
// straight to the in-process fallback. Once resetTimeout has elapsed the
// breaker turns half-open and the next call tries Redis again; success
// closes it, failure re-opens it.
//
//   - CLOSED: backend in use
//   - OPEN: backend skipped
//   - HALF-OPEN: next call probes the backend
//
// Usage:
//
//	cb := circuitbreaker.New(3, 30*time.Second)
//	if cb.Allow() {
//	    if err := rdb.Ping(ctx).Err(); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
