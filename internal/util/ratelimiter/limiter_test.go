package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		advances []time.Duration // clock advance before each Allow() call
		want     []bool
	}{
		{
			name:     "first call always allowed",
			interval: time.Second,
			advances: []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "rapid calls are blocked",
			interval: time.Second,
			advances: []time.Duration{0, 0, 100 * time.Millisecond},
			want:     []bool{true, false, false},
		},
		{
			name:     "call after interval is allowed",
			interval: time.Second,
			advances: []time.Duration{0, time.Second, 500 * time.Millisecond, 600 * time.Millisecond},
			want:     []bool{true, true, false, true},
		},
		{
			name:     "zero interval never blocks",
			interval: 0,
			advances: []time.Duration{0, 0, 0},
			want:     []bool{true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1000, 0)}
			limiter := NewWithClock(tt.interval, clock.Now)

			for i, adv := range tt.advances {
				clock.Advance(adv)
				allowed, wait := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}
				if allowed && wait != 0 {
					t.Errorf("call %d: allowed but wait = %v", i, wait)
				}
				if !allowed && wait <= 0 {
					t.Errorf("call %d: blocked but wait = %v", i, wait)
				}
			}
		})
	}
}

func TestLimiter_MarkAndReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	limiter := NewWithClock(time.Second, clock.Now)

	limiter.Mark()
	if allowed, wait := limiter.Allow(); allowed || wait != time.Second {
		t.Errorf("after Mark: Allow() = %v, %v; want false, 1s", allowed, wait)
	}

	limiter.Reset()
	if allowed, _ := limiter.Allow(); !allowed {
		t.Error("after Reset: Allow() should be true")
	}
	if limiter.Interval() != time.Second {
		t.Errorf("Interval() = %v", limiter.Interval())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(); ok {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 1 {
		t.Errorf("allowed %d times, want exactly 1", allowedCount)
	}
}
