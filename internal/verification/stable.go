package verification

import (
	"context"
	"time"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/stability"
)

// StableCheck passes once two consecutive samples agree. It never consults
// the expected-value store and never records. The first cycle always fails
// and reports no previous value.
type StableCheck[T any] struct {
	name  string
	codec Codec[T]
	check *stability.Stability[T]
	settings

	state    State
	first    bool
	previous sampling.Sample[T]
	current  sampling.Sample[T]
	message  string
}

// firstObservation is the failure message of a cycle with nothing to compare.
const firstObservation = "{name}: first observation '{actual}', stability needs a second sample"

// Stable creates a stability verification over sampler.
func Stable[T any](name string, sampler sampling.Sampler[T], codec Codec[T], equal stability.EqualFunc[T], opts ...Option) (*StableCheck[T], error) {
	switch {
	case sampler == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "stability check %q has no sampler", name)
	case equal == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "stability check %q has no equality", name)
	case codec.Format == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "stability check %q has no formatter", name)
	}

	opts = withDefaultMessages(Messages{
		Pass: "{name}: stable at '{actual}'",
		Fail: "{name}: changed from '{expected}' to '{actual}'",
	}, opts)

	c := &StableCheck[T]{name: name, codec: codec, settings: newSettings(opts)}
	observe := sampling.Func[T](func(ctx context.Context) (sampling.Sample[T], error) {
		s, err := sampler.Sample(ctx)
		if err != nil {
			c.current = sampling.Absent[T]()
			return s, err
		}
		c.current = s
		return s, nil
	})
	c.check = stability.New[T](observe, equal).WithLogger(c.logger).WithMetrics(c.metrics)
	return c, nil
}

// StableString creates a stability verification comparing strings exactly.
func StableString(name string, sampler sampling.Sampler[string], opts ...Option) (*StableCheck[string], error) {
	return Stable(name, sampler, StringCodec, stability.Equal[string](), opts...)
}

// Name returns the check name.
func (c *StableCheck[T]) Name() string { return c.name }

// State returns the current state.
func (c *StableCheck[T]) State() State { return c.state }

// Verify samples once and compares against the previous observation.
func (c *StableCheck[T]) Verify(ctx context.Context) Result {
	start := time.Now()
	c.state = Sampling
	c.first = !c.check.Observed()
	c.previous = c.check.Last()

	stable := c.check.Verify(ctx)
	c.state = Comparing

	if stable {
		c.state = Passed
		c.message = c.render(c.messages.Pass)
		c.metrics.ObserveVerification(metrics.OutcomePassed, start)
	} else if c.first {
		c.state = Failed
		c.message = c.render(firstObservation)
		c.metrics.ObserveVerification(metrics.OutcomeFailed, start)
	} else {
		c.state = Failed
		c.message = c.render(c.messages.Fail)
		c.metrics.ObserveVerification(metrics.OutcomeFailed, start)
	}
	return c.Result()
}

// Reset returns the check to its initial state.
func (c *StableCheck[T]) Reset() {
	c.check.Reset()
	c.state = Pending
	c.first = false
	c.previous = sampling.Sample[T]{}
	c.current = sampling.Sample[T]{}
	c.message = ""
}

// Result returns the outcome of the last cycle. Expected is the previous
// observation, empty on a first cycle.
func (c *StableCheck[T]) Result() Result {
	return Result{
		Name:     c.name,
		Key:      c.key(),
		State:    c.state.String(),
		Passed:   c.state == Passed,
		Actual:   c.format(c.current),
		Expected: c.expected(),
		Message:  c.message,
	}
}

func (c *StableCheck[T]) expected() string {
	if c.first {
		return ""
	}
	return c.format(c.previous)
}

func (c *StableCheck[T]) key() string {
	if c.diffs.Len() > 0 {
		return c.diffs.AsPropertyKey()
	}
	return ""
}

func (c *StableCheck[T]) format(s sampling.Sample[T]) string {
	if !s.Present {
		return NoValueFound
	}
	return c.codec.Format(s.Value)
}

func (c *StableCheck[T]) render(tmpl string) string {
	r := Result{Name: c.name, Actual: c.format(c.current), Expected: c.expected()}
	return renderTemplate(tmpl, r)
}
