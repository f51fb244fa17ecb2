package sampling

import (
	"context"
	"fmt"
)

// Sample is the outcome of one acquisition: either a value or absence.
type Sample[T any] struct {
	Value   T
	Present bool
}

// Of returns a present sample holding v.
func Of[T any](v T) Sample[T] {
	return Sample[T]{Value: v, Present: true}
}

// Absent returns the empty sample.
func Absent[T any]() Sample[T] {
	return Sample[T]{}
}

// Get returns the value and whether it is present.
func (s Sample[T]) Get() (T, bool) {
	return s.Value, s.Present
}

// OrElse returns the value if present, otherwise fallback.
func (s Sample[T]) OrElse(fallback T) T {
	if s.Present {
		return s.Value
	}
	return fallback
}

// String renders the sample for messages. Absent samples render as "<absent>".
func (s Sample[T]) String() string {
	if !s.Present {
		return "<absent>"
	}
	return fmt.Sprint(s.Value)
}

// Sampler produces a value of type T now.
//
// Implementations that reach into a live resource may block until ctx is done
// or their own timeout expires. They must document side effects such as
// waiting on the resource.
type Sampler[T any] interface {
	Sample(ctx context.Context) (Sample[T], error)
}

// Func adapts a function into a Sampler.
type Func[T any] func(ctx context.Context) (Sample[T], error)

// Sample calls f.
func (f Func[T]) Sample(ctx context.Context) (Sample[T], error) {
	return f(ctx)
}

// Const returns a Sampler that always yields v.
func Const[T any](v T) Sampler[T] {
	return Func[T](func(context.Context) (Sample[T], error) {
		return Of(v), nil
	})
}

// Value is a convenience for callers that only care about the value: it samples
// s and returns the zero value when the sample is absent.
func Value[T any](ctx context.Context, s Sampler[T]) (T, error) {
	smp, err := s.Sample(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return smp.Value, nil
}
