// Package stability implements repeated-sampling convergence checks.
//
// A Stability compares the current sample of a Sampler with the previous one.
// It cannot succeed on its first call because there is nothing to compare
// against yet; it succeeds once two consecutive samples are equal under a
// type-specific predicate. Stability never returns an error: whether
// instability is a problem is left to the caller's polling policy (see Poll).
package stability

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/go-cmp/cmp"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// EqualFunc decides whether two present samples are the same observation.
type EqualFunc[T any] func(old, current T) bool

// Equal compares with ==.
func Equal[T comparable]() EqualFunc[T] {
	return func(a, b T) bool { return a == b }
}

// Tolerance treats numbers within delta of each other as equal.
func Tolerance[T ~int | ~int64 | ~float64](delta float64) EqualFunc[T] {
	return func(a, b T) bool {
		return math.Abs(float64(a)-float64(b)) <= delta
	}
}

// Deep compares structurally with go-cmp.
func Deep[T any](opts ...cmp.Option) EqualFunc[T] {
	return func(a, b T) bool { return cmp.Equal(a, b, opts...) }
}

// Stability is the two-state convergence check bound to one sampler.
// It is owned by a single test execution and is not safe for concurrent use.
type Stability[T any] struct {
	sampler  sampling.Sampler[T]
	equal    EqualFunc[T]
	firstRun bool
	old      sampling.Sample[T]
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New binds a stability check to sampler using equal as the predicate.
func New[T any](sampler sampling.Sampler[T], equal EqualFunc[T]) *Stability[T] {
	return &Stability[T]{
		sampler:  sampler,
		equal:    equal,
		firstRun: true,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (s *Stability[T]) WithLogger(l *slog.Logger) *Stability[T] {
	s.logger = l
	return s
}

// WithMetrics records every check.
func (s *Stability[T]) WithMetrics(m *metrics.Metrics) *Stability[T] {
	s.metrics = m
	return s
}

// Verify samples once and reports whether the value has converged.
//
// The first call records the sample and returns false. Later calls succeed
// when both the stored and the fresh sample are absent, or both are present
// and equal. On failure the fresh sample replaces the stored one, so a polling
// loop converges to a fixed point instead of comparing against a stale
// baseline. Sampling errors count as an absent observation.
func (s *Stability[T]) Verify(ctx context.Context) bool {
	current := s.sample(ctx)

	if s.firstRun {
		s.firstRun = false
		s.old = current
		s.logger.Debug("stability: first observation", "value", current)
		s.metrics.ObserveStability(false)
		return false
	}

	stable := s.compare(current)
	if !stable {
		s.logger.Debug("stability: value changed", "old", s.old, "new", current)
		s.old = current
	}
	s.metrics.ObserveStability(stable)
	return stable
}

// Last returns the most recently stored observation.
func (s *Stability[T]) Last() sampling.Sample[T] {
	return s.old
}

// Observed reports whether a first sample has been stored since New or Reset.
func (s *Stability[T]) Observed() bool {
	return !s.firstRun
}

// Reset returns the check to its initial state.
func (s *Stability[T]) Reset() {
	s.firstRun = true
	s.old = sampling.Sample[T]{}
}

func (s *Stability[T]) compare(current sampling.Sample[T]) bool {
	if !s.old.Present {
		return !current.Present
	}
	if !current.Present {
		return false
	}
	return s.equal(s.old.Value, current.Value)
}

func (s *Stability[T]) sample(ctx context.Context) sampling.Sample[T] {
	if s.sampler == nil {
		return sampling.Sample[T]{}
	}
	v, err := s.sampler.Sample(ctx)
	if err != nil {
		s.logger.Debug("stability: sampling failed", "error", err)
		return sampling.Sample[T]{}
	}
	return v
}
