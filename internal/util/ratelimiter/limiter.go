package ratelimiter

import (
	"sync"
	"time"
)

// Limiter lets at most one action through per interval.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// New creates a limiter backed by the wall clock
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a limiter that reads time from now
func NewWithClock(interval time.Duration, now func() time.Time) *Limiter {
	return &Limiter{interval: interval, now: now}
}

// Allow reports whether an action may run now. When it may, the current
// time is recorded; otherwise the remaining wait is returned.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.last.IsZero() || now.Sub(l.last) >= l.interval {
		l.last = now
		return true, 0
	}
	return false, l.interval - now.Sub(l.last)
}

// Mark records an action that ran regardless of the limit, such as a
// final flush, so the next Allow waits a full interval
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}

// Reset clears the limiter state, allowing the next action immediately
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}

// Interval returns the configured interval
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
