package testutil

import (
	"context"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// Step is one scripted acquisition outcome.
type Step[T any] struct {
	Sample sampling.Sample[T]
	Err    error
}

// Value scripts a present value.
func Value[T any](v T) Step[T] {
	return Step[T]{Sample: sampling.Of(v)}
}

// Nothing scripts an absent sample.
func Nothing[T any]() Step[T] {
	return Step[T]{Sample: sampling.Absent[T]()}
}

// Fail scripts an error.
func Fail[T any](err error) Step[T] {
	return Step[T]{Err: err}
}

// ScriptedSampler replays steps in order and counts invocations. Once the
// script is exhausted the last step repeats.
type ScriptedSampler[T any] struct {
	steps []Step[T]
	calls int
}

// NewScriptedSampler creates a sampler that replays steps.
func NewScriptedSampler[T any](steps ...Step[T]) *ScriptedSampler[T] {
	return &ScriptedSampler[T]{steps: steps}
}

// Constant creates a sampler that always returns v.
func Constant[T any](v T) *ScriptedSampler[T] {
	return NewScriptedSampler(Value(v))
}

// Sequence creates a sampler that returns vs in order.
func Sequence[T any](vs ...T) *ScriptedSampler[T] {
	steps := make([]Step[T], len(vs))
	for i, v := range vs {
		steps[i] = Value(v)
	}
	return NewScriptedSampler(steps...)
}

// Sample returns the next scripted step.
func (s *ScriptedSampler[T]) Sample(context.Context) (sampling.Sample[T], error) {
	s.calls++
	if len(s.steps) == 0 {
		return sampling.Absent[T](), nil
	}
	idx := s.calls - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	return step.Sample, step.Err
}

// Calls returns how many times Sample has been invoked.
func (s *ScriptedSampler[T]) Calls() int {
	return s.calls
}
