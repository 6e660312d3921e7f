// Package clock owns the shared simulated-day pointer and the host's
// auto-advance scheduler.
package clock

import (
	"sync"
	"time"
)

// SessionClock is the current simulated day for one room. Day arithmetic is
// pure index math; cosmetic date relabeling happens elsewhere.
type SessionClock struct {
	mu       sync.Mutex
	day      int
	startDay int
	lastDay  int // final valid index of the series
}

// NewSessionClock creates a clock positioned at startDay.
func NewSessionClock(startDay, lastDay int) *SessionClock {
	return &SessionClock{day: startDay, startDay: startDay, lastDay: lastDay}
}

// Day returns the current simulated day.
func (c *SessionClock) Day() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// Advance moves the pointer forward one day. Returns the new day and false
// when the series is exhausted (the pointer never passes lastDay).
func (c *SessionClock) Advance() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day >= c.lastDay {
		return c.day, false
	}
	c.day++
	return c.day, true
}

// AtEnd reports whether the pointer has reached the series end.
func (c *SessionClock) AtEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day >= c.lastDay
}

// Reset returns the pointer to the start day.
func (c *SessionClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = c.startDay
}

// AutoAdvancer fires a callback on a fixed interval while enabled. It is
// disabled automatically whenever a trade freeze appears and must be
// explicitly re-enabled afterward; it never auto-resumes.
type AutoAdvancer struct {
	mu      sync.Mutex
	stop    chan struct{}
	running bool
	fn      func()
}

// NewAutoAdvancer wraps the per-tick callback.
func NewAutoAdvancer(fn func()) *AutoAdvancer {
	return &AutoAdvancer{fn: fn}
}

// Start begins ticking at the given interval. A running advancer is stopped
// first, so Start doubles as an interval change.
func (a *AutoAdvancer) Start(interval time.Duration) {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stop = make(chan struct{})
	a.running = true

	go func(stop chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.fn()
			}
		}
	}(a.stop)
}

// Stop cancels the scheduler. Safe to call repeatedly and when not running.
func (a *AutoAdvancer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	close(a.stop)
	a.running = false
}

// Running reports whether the scheduler is enabled.
func (a *AutoAdvancer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
