package stability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Poll when the condition did not hold in time.
var ErrTimeout = errors.New("condition not met before timeout")

// Default polling parameters.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// PollConfig bounds a polling loop.
type PollConfig struct {
	// Timeout is the total time budget. Default: 10s.
	Timeout time.Duration

	// Interval is the pause between attempts. Default: 250ms.
	Interval time.Duration
}

func (c *PollConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Poll calls cond until it returns true, the timeout expires or ctx is done.
//
// Cancellation is cooperative: an attempt in progress is never interrupted.
// The timeout is enforced by not starting another attempt. Returns the number
// of attempts made; the error wraps ErrTimeout or the context error.
func Poll(ctx context.Context, cfg PollConfig, cond func(ctx context.Context) bool) (int, error) {
	cfg.defaults()
	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		if cond(ctx) {
			return attempts, nil
		}
		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("poll: %w", ctx.Err())
		case <-deadline.C:
			return attempts, fmt.Errorf("poll after %d attempts in %s: %w", attempts, cfg.Timeout, ErrTimeout)
		case <-ticker.C:
		}
		// A slow attempt leaves both the tick and the deadline ready; the
		// deadline wins.
		select {
		case <-deadline.C:
			return attempts, fmt.Errorf("poll after %d attempts in %s: %w", attempts, cfg.Timeout, ErrTimeout)
		default:
		}
	}
}

// AwaitStable polls s until two consecutive samples agree. Because a
// Stability cannot succeed on its first call, at least two attempts are made.
func AwaitStable[T any](ctx context.Context, s *Stability[T], cfg PollConfig) (int, error) {
	return Poll(ctx, cfg, s.Verify)
}
