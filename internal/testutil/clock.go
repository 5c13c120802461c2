// Package testutil provides deterministic fakes shared across test
// packages: a manually advanced clock and a fault-injecting storage
// wrapper.
package testutil

import (
	"sync"
	"time"
)

// ManualClock is a clock.Clock whose time only moves when a test
// advances it.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, so a debounced flush firing on a timer goroutine can read it
// while the test advances it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at the given instant.
func NewManualClock(at time.Time) *ManualClock {
	return &ManualClock{now: at}
}

// Now returns the frozen instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to the given instant.
func (c *ManualClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}
