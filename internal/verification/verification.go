// Package verification compares sampled actual values against expected
// values resolved from a Differences-derived key.
//
// One call to Verify runs a full cycle:
//
//	pending -> sampling -> comparing -> passed | failed
//
// A sampling error skips comparison and fails the cycle with a message built
// from the error. A missing expected entry is not an error: it shows up as
// NO_EXPECTED_VALUE_SET so suites can run in recording mode.
//
// Absence policy, applied by the state machine for every predicate:
//
//	actual absent,  expected absent  -> passed
//	actual absent,  expected present -> failed
//	actual present, expected absent  -> failed
//	both present                     -> predicate decides
//
// Expected is absent when the store has no entry for the key, or when
// SetExpectedAbsent was called.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// NoExpectedValueSet marks a key without an entry in the expected-value store.
const NoExpectedValueSet = "NO_EXPECTED_VALUE_SET"

// NoValueFound is how an absent actual value is shown in messages.
const NoValueFound = "NO_VALUE_FOUND"

// State is the position of a verification in its cycle.
type State int

const (
	Pending State = iota
	Sampling
	Comparing
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sampling:
		return "sampling"
	case Comparing:
		return "comparing"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends a cycle.
func (s State) Terminal() bool {
	return s == Passed || s == Failed
}

// Predicate compares two present values. An error fails the cycle as a
// configuration problem (e.g. an invalid expected pattern).
type Predicate[T any] func(actual, expected T) (bool, error)

// Messages are the pass and fail templates. {name}, {actual} and {expected}
// are replaced with the verification name and the formatted values.
type Messages struct {
	Pass string
	Fail string
}

// DefaultMessages are used by New when no templates are given.
var DefaultMessages = Messages{
	Pass: "{name}: '{actual}' matches expected '{expected}'",
	Fail: "{name}: expected '{expected}' but found '{actual}'",
}

// Result is the outcome of one cycle.
type Result struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	State    string `json:"state"`
	Passed   bool   `json:"passed"`
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
	Recorded bool   `json:"recorded,omitempty"`
}

// Verification is one assertion site: a sampler, a key derivation and a
// predicate. It is owned by a single test execution and is not safe for
// concurrent use.
type Verification[T any] struct {
	name      string
	sampler   sampling.Sampler[T]
	predicate Predicate[T]
	codec     Codec[T]
	settings

	state    State
	actual   sampling.Sample[T]
	expected sampling.Sample[T]
	resolved bool
	err      error
	message  string
	recorded bool
}

// New creates a verification. sampler, predicate and both codec functions are
// required.
func New[T any](name string, sampler sampling.Sampler[T], codec Codec[T], predicate Predicate[T], opts ...Option) (*Verification[T], error) {
	switch {
	case sampler == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "verification %q has no sampler", name)
	case predicate == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "verification %q has no predicate", name)
	case codec.Format == nil || codec.Parse == nil:
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "verification %q has an incomplete codec", name)
	}

	v := &Verification[T]{
		name:      name,
		sampler:   sampler,
		predicate: predicate,
		codec:     codec,
		settings:  newSettings(opts),
	}
	return v, nil
}

// Name returns the verification name.
func (v *Verification[T]) Name() string { return v.name }

// State returns the current state.
func (v *Verification[T]) State() State { return v.state }

// Actual returns the most recent sample.
func (v *Verification[T]) Actual() sampling.Sample[T] { return v.actual }

// Expected returns the resolved expected value.
func (v *Verification[T]) Expected() sampling.Sample[T] { return v.expected }

// Err returns the error that failed the last cycle, if any.
func (v *Verification[T]) Err() error { return v.err }

// Message returns the message of the last cycle.
func (v *Verification[T]) Message() string { return v.message }

// Differences returns the naming dimensions used for the key.
func (v *Verification[T]) Differences() *differences.Differences { return v.diffs }

// Key returns the expected-value property key: the Differences key, or the
// sanitized name when there are no differences.
func (v *Verification[T]) Key() string {
	if v.diffs.Len() > 0 {
		return v.diffs.AsPropertyKey()
	}
	return differences.Sanitize(v.name, differences.DefaultMaxTagLength)
}

// Path returns the directory path new values are recorded under.
func (v *Verification[T]) Path() string {
	return v.diffs.AsFilePath()
}

// SetExpected overrides the expected value, bypassing the store.
func (v *Verification[T]) SetExpected(value T) *Verification[T] {
	v.expected = sampling.Of(value)
	v.resolved = true
	return v
}

// SetExpectedAbsent declares that no value is expected.
func (v *Verification[T]) SetExpectedAbsent() *Verification[T] {
	v.expected = sampling.Absent[T]()
	v.resolved = true
	return v
}

// ResetExpected discards a resolved or overridden expected value. The next
// cycle looks it up again.
func (v *Verification[T]) ResetExpected() {
	v.expected = sampling.Sample[T]{}
	v.resolved = false
}

// Verify runs one cycle and returns its result.
func (v *Verification[T]) Verify(ctx context.Context) Result {
	start := time.Now()
	v.begin()

	v.state = Sampling
	actual, err := v.sampler.Sample(ctx)
	if err != nil {
		v.fail(err, fmt.Sprintf("%s: sampling failed: %v", v.name, err))
		v.metrics.ObserveVerification(metrics.OutcomeError, start)
		return v.Result()
	}
	v.actual = actual

	v.state = Comparing
	if err := v.resolveExpected(); err != nil {
		v.fail(err, fmt.Sprintf("%s: %v", v.name, err))
		v.metrics.ObserveVerification(metrics.OutcomeError, start)
		return v.Result()
	}

	passed, err := v.compare()
	if err != nil {
		v.fail(err, fmt.Sprintf("%s: %v", v.name, err))
		v.metrics.ObserveVerification(metrics.OutcomeError, start)
		return v.Result()
	}

	if passed {
		v.state = Passed
		v.message = v.render(v.messages.Pass)
		v.logger.Debug("verification passed", "name", v.name, "key", v.Key())
		v.metrics.ObserveVerification(metrics.OutcomePassed, start)
	} else {
		v.state = Failed
		v.message = v.render(v.messages.Fail)
		v.logger.Info("verification failed", "name", v.name, "key", v.Key(), "message", v.message)
		v.metrics.ObserveVerification(metrics.OutcomeFailed, start)
	}

	v.record(ctx, passed)
	return v.Result()
}

// Result returns the outcome of the last cycle.
func (v *Verification[T]) Result() Result {
	r := Result{
		Name:     v.name,
		Key:      v.Key(),
		State:    v.state.String(),
		Passed:   v.state == Passed,
		Actual:   v.formatActual(),
		Expected: v.formatExpected(),
		Message:  v.message,
		Recorded: v.recorded,
	}
	if v.err != nil {
		r.Error = v.err.Error()
	}
	return r
}

func (v *Verification[T]) begin() {
	v.state = Pending
	v.actual = sampling.Sample[T]{}
	v.err = nil
	v.message = ""
	v.recorded = false
}

func (v *Verification[T]) fail(err error, msg string) {
	v.state = Failed
	v.err = err
	v.message = msg
	v.logger.Warn("verification error", "name", v.name, "error", err)
}

func (v *Verification[T]) resolveExpected() error {
	if v.resolved {
		return nil
	}
	key := v.Key()
	raw, ok := "", false
	if v.store != nil {
		raw, ok = v.store.Get(key)
	}
	if !ok {
		v.expected = sampling.Absent[T]()
		v.resolved = true
		v.logger.Debug("verification: no expected value", "name", v.name, "key", key)
		return nil
	}
	parsed, err := v.codec.Parse(raw)
	if err != nil {
		return &sampling.ConfigError{
			Code:    sampling.ErrCodeInvalidArg,
			Message: fmt.Sprintf("malformed expected value for %s: %q", key, raw),
			Err:     err,
		}
	}
	v.expected = sampling.Of(parsed)
	v.resolved = true
	return nil
}

func (v *Verification[T]) compare() (bool, error) {
	switch {
	case !v.actual.Present && !v.expected.Present:
		return true, nil
	case !v.actual.Present || !v.expected.Present:
		return false, nil
	}
	return v.predicate(v.actual.Value, v.expected.Value)
}

func (v *Verification[T]) record(ctx context.Context, passed bool) {
	if v.recorder == nil || !v.actual.Present {
		return
	}
	if v.mode == RecordNever || (v.mode == RecordOnPass && !passed) {
		return
	}
	if err := v.recorder.RecordNewValue(ctx, v.Path(), v.Key(), v.codec.Format(v.actual.Value)); err != nil {
		v.logger.Warn("verification: recording failed", "name", v.name, "key", v.Key(), "error", err)
		return
	}
	v.recorded = true
	v.metrics.IncrementRecorded()
}

func (v *Verification[T]) formatActual() string {
	if !v.actual.Present {
		return NoValueFound
	}
	return v.codec.Format(v.actual.Value)
}

func (v *Verification[T]) formatExpected() string {
	if !v.expected.Present {
		return NoExpectedValueSet
	}
	return v.codec.Format(v.expected.Value)
}

func (v *Verification[T]) render(tmpl string) string {
	return renderTemplate(tmpl, Result{Name: v.name, Actual: v.formatActual(), Expected: v.formatExpected()})
}

func renderTemplate(tmpl string, r Result) string {
	return strings.NewReplacer(
		"{name}", r.Name,
		"{actual}", r.Actual,
		"{expected}", r.Expected,
	).Replace(tmpl)
}

// RecordMode controls which cycles persist their actual value.
type RecordMode int

const (
	// RecordAlways records every cycle with a present actual value.
	RecordAlways RecordMode = iota
	// RecordOnPass records only passing cycles.
	RecordOnPass
	// RecordNever disables recording even when a recorder is set.
	RecordNever
)

// ParseRecordMode parses always, pass or never.
func ParseRecordMode(s string) (RecordMode, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return RecordAlways, nil
	case "pass", "on-pass", "onpass":
		return RecordOnPass, nil
	case "never", "off":
		return RecordNever, nil
	}
	return 0, sampling.NewConfigError(sampling.ErrCodeInvalidArg, "unknown record mode %q", s)
}

type settings struct {
	diffs    *differences.Differences
	store    expected.Store
	recorder expected.Recorder
	mode     RecordMode
	messages Messages
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func newSettings(opts []Option) settings {
	s := settings{messages: DefaultMessages}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.messages.Pass == "" {
		s.messages.Pass = DefaultMessages.Pass
	}
	if s.messages.Fail == "" {
		s.messages.Fail = DefaultMessages.Fail
	}
	return s
}

// Option configures a verification.
type Option func(*settings)

// WithDifferences sets the naming dimensions the key is derived from.
func WithDifferences(d *differences.Differences) Option {
	return func(s *settings) { s.diffs = d }
}

// WithStore sets the expected-value store.
func WithStore(st expected.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithRecorder persists actual values as candidate baselines.
func WithRecorder(r expected.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithRecordMode selects which cycles are recorded.
func WithRecordMode(m RecordMode) Option {
	return func(s *settings) { s.mode = m }
}

// WithMessages replaces the pass and fail templates. Empty fields keep the
// constructor's template.
func WithMessages(m Messages) Option {
	return func(s *settings) {
		if m.Pass != "" {
			s.messages.Pass = m.Pass
		}
		if m.Fail != "" {
			s.messages.Fail = m.Fail
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics records cycle outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}
