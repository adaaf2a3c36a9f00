package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // backend in use
	StateOpen                  // backend skipped
	StateHalfOpen              // next call probes the backend
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker tracks consecutive failures of one backend.
type CircuitBreaker struct {
	mutex            sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	onChange         func(from, to State)
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// OnStateChange registers a callback run after every transition. It is
// called with the breaker lock released.
func OnStateChange(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onChange = fn
	}
}

func New(threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	cb := &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether the backend should be tried. An open breaker turns
// half-open once resetTimeout has passed since the last failure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	from := cb.state
	allowed := true

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
		} else {
			allowed = false
		}
	}

	to := cb.state
	cb.mutex.Unlock()

	cb.notify(from, to)
	return allowed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	from := cb.state

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}

	to := cb.state
	cb.mutex.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	from := cb.state

	cb.failures = 0
	cb.state = StateClosed

	to := cb.state
	cb.mutex.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onChange != nil {
		cb.onChange(from, to)
	}
}
