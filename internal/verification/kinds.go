package verification

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// Equals passes when the actual string equals the expected string.
func Equals(name string, sampler sampling.Sampler[string], opts ...Option) (*Verification[string], error) {
	return New(name, sampler, StringCodec, func(actual, expected string) (bool, error) {
		return actual == expected, nil
	}, opts...)
}

// Contains passes when the actual string contains the expected string.
func Contains(name string, sampler sampling.Sampler[string], opts ...Option) (*Verification[string], error) {
	opts = withDefaultMessages(Messages{
		Pass: "{name}: '{actual}' contains '{expected}'",
		Fail: "{name}: expected '{actual}' to contain '{expected}'",
	}, opts)
	return New(name, sampler, StringCodec, func(actual, expected string) (bool, error) {
		return strings.Contains(actual, expected), nil
	}, opts...)
}

// Pattern passes when the actual string matches the expected regular
// expression. An invalid expected pattern fails the cycle with an error.
func Pattern(name string, sampler sampling.Sampler[string], opts ...Option) (*Verification[string], error) {
	opts = withDefaultMessages(Messages{
		Pass: "{name}: '{actual}' matches pattern '{expected}'",
		Fail: "{name}: expected '{actual}' to match pattern '{expected}'",
	}, opts)
	return New(name, sampler, StringCodec, func(actual, expected string) (bool, error) {
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, &sampling.ConfigError{
				Code:    sampling.ErrCodeInvalidArg,
				Message: fmt.Sprintf("invalid expected pattern %q", expected),
				Err:     err,
			}
		}
		return re.MatchString(actual), nil
	}, opts...)
}

// IntEquals passes when the actual integer equals the expected one.
func IntEquals(name string, sampler sampling.Sampler[int], opts ...Option) (*Verification[int], error) {
	return New(name, sampler, IntCodec, func(actual, expected int) (bool, error) {
		return actual == expected, nil
	}, opts...)
}

// FloatTolerance passes when the actual value is within tolerance of the
// expected value.
func FloatTolerance(name string, sampler sampling.Sampler[float64], tolerance float64, opts ...Option) (*Verification[float64], error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, sampling.NewConfigError(sampling.ErrCodeInvalidArg, "verification %q: tolerance %v must be >= 0", name, tolerance)
	}
	opts = withDefaultMessages(Messages{
		Pass: fmt.Sprintf("{name}: {actual} is within %g of {expected}", tolerance),
		Fail: fmt.Sprintf("{name}: expected {expected} ±%g but found {actual}", tolerance),
	}, opts)
	return New(name, sampler, FloatCodec, func(actual, expected float64) (bool, error) {
		return math.Abs(actual-expected) <= tolerance, nil
	}, opts...)
}

// BoolEquals passes when the actual flag equals the expected one.
func BoolEquals(name string, sampler sampling.Sampler[bool], opts ...Option) (*Verification[bool], error) {
	return New(name, sampler, BoolCodec, func(actual, expected bool) (bool, error) {
		return actual == expected, nil
	}, opts...)
}

func withDefaultMessages(m Messages, opts []Option) []Option {
	return append([]Option{WithMessages(m)}, opts...)
}
