package wol

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 10
	DefaultWindow      = 5 * time.Minute
)

// Limiter caps wake attempts per key inside a sliding window.
type Limiter struct {
	mutex    sync.Mutex
	max      int
	window   time.Duration
	now      func() time.Time
	attempts map[string][]time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return NewLimiterWithClock(max, window, time.Now)
}

func NewLimiterWithClock(max int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		max:      max,
		window:   window,
		now:      now,
		attempts: make(map[string][]time.Time),
	}
}

// Allow records an attempt for key and reports whether it is within the
// limit. Rejected attempts are not recorded. A non-positive max disables
// limiting.
func (l *Limiter) Allow(key string) bool {
	if l.max <= 0 {
		return true
	}

	now := l.now()
	cutoff := now.Add(-l.window)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	recent := l.attempts[key][:0]
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false
	}
	l.attempts[key] = append(recent, now)
	return true
}
