// Package samplers provides the concrete samplers that read from a live
// source.Source and registers them by kind so scenarios can build them from
// data.
//
// Registered kinds (all produce strings):
//
//	text     selector, timeout        visible value of the first match
//	count    selector                 number of matches, decimal
//	current                           the source's current value (page URL)
//	regex    selector, pattern, group, fallback, timeout
//	                                  group of the first pattern match in text
package samplers

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/source"
)

// DefaultTimeout bounds element lookups when no timeout argument is given.
const DefaultTimeout = 5 * time.Second

// Kind identifiers.
const (
	KindText    = "text"
	KindCount   = "count"
	KindCurrent = "current"
	KindRegex   = "regex"
)

// Text samples the value of the first element matching selector.
//
// Side effect: waits on the live source up to timeout.
func Text(src source.Source, selector string, timeout time.Duration) sampling.Sampler[string] {
	return sampling.Func[string](func(ctx context.Context) (sampling.Sample[string], error) {
		return src.Find(ctx, selector, timeout)
	})
}

// All samples the values of every element matching selector.
func All(src source.Source, selector string) sampling.Sampler[[]string] {
	return sampling.Func[[]string](func(ctx context.Context) (sampling.Sample[[]string], error) {
		vs, err := src.FindAll(ctx, selector)
		if err != nil {
			return sampling.Sample[[]string]{}, err
		}
		return sampling.Of(vs), nil
	})
}

// Count samples how many elements match selector.
func Count(src source.Source, selector string) sampling.Sampler[int] {
	return sampling.Count[string](All(src, selector))
}

// Current samples the source's current value.
func Current(src source.Source) sampling.Sampler[string] {
	return sampling.Func[string](func(ctx context.Context) (sampling.Sample[string], error) {
		v, err := src.CurrentValue(ctx)
		if err != nil {
			return sampling.Sample[string]{}, err
		}
		return sampling.Of(v), nil
	})
}

// Register adds the source-backed kinds to reg.
func Register(reg *sampling.Registry[string], src source.Source) error {
	if src == nil {
		return sampling.NewConfigError(sampling.ErrCodeNilDependency, "samplers need a source")
	}

	ctors := map[string]sampling.Constructor[string]{
		KindText: func(args sampling.Args) (sampling.Sampler[string], error) {
			sel, timeout, err := selectorArgs(args)
			if err != nil {
				return nil, err
			}
			return Text(src, sel, timeout), nil
		},
		KindCount: func(args sampling.Args) (sampling.Sampler[string], error) {
			sel, err := args.String("selector")
			if err != nil {
				return nil, err
			}
			return sampling.Map[int, string](Count(src, sel), strconv.Itoa), nil
		},
		KindCurrent: func(sampling.Args) (sampling.Sampler[string], error) {
			return Current(src), nil
		},
		KindRegex: func(args sampling.Args) (sampling.Sampler[string], error) {
			sel, timeout, err := selectorArgs(args)
			if err != nil {
				return nil, err
			}
			pattern, err := args.String("pattern")
			if err != nil {
				return nil, err
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, &sampling.ConfigError{Code: sampling.ErrCodeInvalidArg, Message: "pattern", Err: err}
			}
			group, err := args.Int("group", 0)
			if err != nil {
				return nil, err
			}
			t, err := sampling.Regex(Text(src, sel, timeout), re, group)
			if err != nil {
				return nil, err
			}
			if fb, ok := args["fallback"]; ok {
				s, ok := fb.(string)
				if !ok {
					return nil, sampling.NewConfigError(sampling.ErrCodeInvalidArg, "argument \"fallback\": expected string, got %T", fb)
				}
				t.WithFallback(s)
			}
			return t, nil
		},
	}

	for _, kind := range []string{KindText, KindCount, KindCurrent, KindRegex} {
		if err := reg.Register(kind, ctors[kind]); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry creates a string registry with the source-backed kinds.
func NewRegistry(src source.Source) (*sampling.Registry[string], error) {
	reg := sampling.NewRegistry[string]()
	if err := Register(reg, src); err != nil {
		return nil, err
	}
	return reg, nil
}

func selectorArgs(args sampling.Args) (string, time.Duration, error) {
	sel, err := args.String("selector")
	if err != nil {
		return "", 0, err
	}
	timeout, err := args.Duration("timeout", DefaultTimeout)
	if err != nil {
		return "", 0, err
	}
	return sel, timeout, nil
}
