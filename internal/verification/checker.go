package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/stability"
)

// Checker is any verification that runs a cycle and reports a Result.
type Checker interface {
	Name() string
	Verify(ctx context.Context) Result
}

var (
	_ Checker = (*Verification[string])(nil)
	_ Checker = (*StableCheck[string])(nil)
)

// Await runs c until a cycle passes or cfg.Timeout expires, and returns the
// last cycle's result. On timeout the error is stability.ErrTimeout and the
// message notes the number of attempts. In-flight samples are never
// interrupted; the deadline is only checked between cycles.
func Await(ctx context.Context, c Checker, cfg stability.PollConfig) (Result, error) {
	var last Result
	attempts, err := stability.Poll(ctx, cfg, func(ctx context.Context) bool {
		last = c.Verify(ctx)
		return last.Passed
	})
	if err != nil {
		if errors.Is(err, stability.ErrTimeout) {
			last.Message = fmt.Sprintf("%s (gave up after %d attempts)", last.Message, attempts)
		}
		return last, err
	}
	return last, nil
}

// VerifyAll runs one cycle of each checker in order.
func VerifyAll(ctx context.Context, checks ...Checker) []Result {
	out := make([]Result, 0, len(checks))
	for _, c := range checks {
		out = append(out, c.Verify(ctx))
	}
	return out
}
