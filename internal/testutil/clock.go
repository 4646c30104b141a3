package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe fake time source for tests.
//
// Every call to Now advances the clock by one tick, so successive calls
// return strictly increasing times regardless of how fast the test runs.
// Eviction ranking and date-prefix formatting become reproducible.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	tick time.Duration
	n    int64
}

// NewDeterministicClock creates a clock starting at base that advances by
// one millisecond per call. A zero base starts at 2024-01-02 03:04:05 UTC.
func NewDeterministicClock(base time.Time) *DeterministicClock {
	if base.IsZero() {
		base = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return &DeterministicClock{base: base, tick: time.Millisecond}
}

// Now advances the clock by one tick and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.base.Add(time.Duration(c.n) * c.tick)
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
