package sampling

import (
	"context"
	"regexp"
)

// Transforming produces O by applying a pure transform to the most recent
// sample of an upstream Sampler[I]. Transforming samplers are themselves
// Samplers, so they chain into pipelines.
//
// The transform is only applied to present input. Absent input yields the
// configured fallback (absent unless set with WithFallback). Errors from the
// upstream sampler propagate unchanged.
type Transforming[I, O any] struct {
	input    Sampler[I]
	fn       func(I) (Sample[O], error)
	fallback Sample[O]
}

// Transform creates a Transforming sampler from an arbitrary transform.
// fn must not sample anything itself.
func Transform[I, O any](input Sampler[I], fn func(I) (Sample[O], error)) *Transforming[I, O] {
	return &Transforming[I, O]{input: input, fn: fn}
}

// Map transforms every present input with fn.
func Map[I, O any](input Sampler[I], fn func(I) O) *Transforming[I, O] {
	return Transform(input, func(v I) (Sample[O], error) {
		return Of(fn(v)), nil
	})
}

// Filter keeps the elements of a collection sample for which keep returns true.
func Filter[T any](input Sampler[[]T], keep func(T) bool) *Transforming[[]T, []T] {
	return Transform(input, func(in []T) (Sample[[]T], error) {
		out := make([]T, 0, len(in))
		for _, v := range in {
			if keep(v) {
				out = append(out, v)
			}
		}
		return Of(out), nil
	})
}

// Count maps a collection sample to its size. An absent collection counts as zero.
func Count[T any](input Sampler[[]T]) *Transforming[[]T, int] {
	t := Transform(input, func(in []T) (Sample[int], error) {
		return Of(len(in)), nil
	})
	t.fallback = Of(0)
	return t
}

// Regex extracts group from the first match of re in a string sample. Group 0
// is the whole match. When there is no match the fallback is returned.
func Regex(input Sampler[string], re *regexp.Regexp, group int) (*Transforming[string, string], error) {
	if err := checkPattern(re, group); err != nil {
		return nil, err
	}
	t := &Transforming[string, string]{input: input}
	t.fn = func(s string) (Sample[string], error) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return t.fallback, nil
		}
		return Of(m[group]), nil
	}
	return t, nil
}

// RegexGroups returns every capture group of the first match of re. When there
// is no match the fallback is returned.
func RegexGroups(input Sampler[string], re *regexp.Regexp) (*Transforming[string, []string], error) {
	if err := checkPattern(re, 0); err != nil {
		return nil, err
	}
	t := &Transforming[string, []string]{input: input}
	t.fn = func(s string) (Sample[[]string], error) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return t.fallback, nil
		}
		return Of(append([]string(nil), m[1:]...)), nil
	}
	return t, nil
}

// RegexAll returns group from every match of re. No match yields an empty,
// present slice.
func RegexAll(input Sampler[string], re *regexp.Regexp, group int) (*Transforming[string, []string], error) {
	if err := checkPattern(re, group); err != nil {
		return nil, err
	}
	return Transform(input, func(s string) (Sample[[]string], error) {
		matches := re.FindAllStringSubmatch(s, -1)
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, m[group])
		}
		return Of(out), nil
	}), nil
}

func checkPattern(re *regexp.Regexp, group int) error {
	if re == nil {
		return NewConfigError(ErrCodeNilDependency, "regex transform requires a pattern")
	}
	if group < 0 || group > re.NumSubexp() {
		return NewConfigError(ErrCodeInvalidArg, "pattern %q has no group %d", re.String(), group)
	}
	return nil
}

// WithFallback sets the value returned for absent input and, for regex
// transforms, for input that does not match.
func (t *Transforming[I, O]) WithFallback(v O) *Transforming[I, O] {
	t.fallback = Of(v)
	return t
}

// Input returns the upstream sampler.
func (t *Transforming[I, O]) Input() Sampler[I] {
	return t.input
}

// Sample samples the input and applies the transform.
func (t *Transforming[I, O]) Sample(ctx context.Context) (Sample[O], error) {
	if t.input == nil {
		return Sample[O]{}, NewConfigError(ErrCodeNilDependency, "transforming sampler has no input")
	}
	in, err := t.input.Sample(ctx)
	if err != nil {
		return Sample[O]{}, err
	}
	if !in.Present {
		return t.fallback, nil
	}
	return t.fn(in.Value)
}
