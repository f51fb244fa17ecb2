package store

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Clock stamps recorded values with increasing sequence numbers.
type Clock interface {
	Next() int64
}

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// SeqClock is a monotonic logical clock, safe for concurrent use.
type SeqClock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *SeqClock {
	return &SeqClock{}
}

// Next returns the next sequence number.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
