// Package testutil provides shared test helpers.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe fake wall clock for tests.
//
// Every Now() call advances the clock by a fixed step, so code that
// timestamps events (run records, metadata) produces identical output on
// every run. Inject via the clock seams (Scheduler.SetClock,
// worker.Launcher.Now).
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at start, advancing by
// step per Now() call. A zero step gives a frozen clock.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{now: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d without producing a reading.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
