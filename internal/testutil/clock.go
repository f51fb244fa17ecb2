// Package testutil provides deterministic collaborators for tests: a logical
// clock, a fixed run id generator and scripted samplers that count how often
// they are invoked.
package testutil

import "sync"

// Clock is a resettable logical clock. The first call to Next returns 1.
//
// It satisfies store.Clock so recorded baselines get reproducible sequence
// numbers in tests.
type Clock struct {
	mu  sync.Mutex
	seq int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments and returns the sequence number.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the sequence number without incrementing.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
