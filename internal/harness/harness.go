package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/session"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/source"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/stability"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/verification"
)

// checkDimension is the name of the difference that carries the check name.
const checkDimension = "Check"

// SourceFactory opens the value source for a device. Sources implementing
// io.Closer are closed when the device run ends.
type SourceFactory func(ctx context.Context, d device.Device) (source.Source, error)

// Runner executes scenarios. The zero value is not usable; Sources is
// required.
type Runner struct {
	Sources    SourceFactory
	Expected   expected.Store
	Recorder   expected.Recorder
	RecordMode verification.RecordMode

	// DeviceRecorder, when set, replaces Recorder per device run.
	DeviceRecorder func(d device.Device) expected.Recorder

	// Parallelism limits concurrent device runs. Zero means unlimited.
	Parallelism int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run executes every check of s on device d. Check build failures are
// reported in the result; the returned error is reserved for failures that
// prevent the run, such as an unavailable source.
func (r *Runner) Run(ctx context.Context, s *Scenario, d device.Device) (*Result, error) {
	if r.Sources == nil {
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "runner has no source factory")
	}

	src, err := r.Sources(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("open source for %s: %w", deviceLabel(d), err)
	}
	if c, ok := src.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				r.logger().Warn("closing source failed", "device", deviceLabel(d), "error", err)
			}
		}()
	}

	rec := r.Recorder
	if r.DeviceRecorder != nil {
		rec = r.DeviceRecorder(d)
	}
	sess, err := session.New(session.Config{
		Device:     d,
		Source:     src,
		Expected:   r.Expected,
		Recorder:   rec,
		RecordMode: r.RecordMode,
		Logger:     r.logger().With("scenario", s.Name),
		Metrics:    r.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if s.Test != nil {
		sess.StartTest(s.Test.Class, s.Test.Method)
	}
	defer sess.Reset()

	result := NewResult(s.Name, d.Name())
	for _, c := range s.Checks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		checker, poll, err := buildCheck(sess, c)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: %v", c.Name, err))
			continue
		}
		result.AddCheck(runCheck(ctx, checker, c, poll))
	}

	sess.Logger().Info("scenario finished",
		"pass", result.Pass,
		"checks", len(result.Checks),
		"passed", result.Passed(),
	)
	return result, nil
}

// RunDevices runs s on every device in parallel. Results are returned in
// device order. The first run error cancels the remaining runs.
func (r *Runner) RunDevices(ctx context.Context, s *Scenario, devices []device.Device) ([]*Result, error) {
	results := make([]*Result, len(devices))
	g, ctx := errgroup.WithContext(ctx)
	if r.Parallelism > 0 {
		g.SetLimit(r.Parallelism)
	}
	for i, d := range devices {
		g.Go(func() error {
			res, err := r.Run(ctx, s, d)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// KeyInfo is the derived naming of one check on one device.
type KeyInfo struct {
	Device string `json:"device,omitempty"`
	Check  string `json:"check"`
	Key    string `json:"key"`
	Path   string `json:"path"`
}

// Keys derives the expected-value keys and record paths of every check in s
// for device d, without sampling anything.
func Keys(s *Scenario, d device.Device) ([]KeyInfo, error) {
	sess, err := session.New(session.Config{Device: d})
	if err != nil {
		return nil, err
	}
	if s.Test != nil {
		sess.StartTest(s.Test.Class, s.Test.Method)
	}
	out := make([]KeyInfo, 0, len(s.Checks))
	for _, c := range s.Checks {
		diffs := sess.Differences(checkDifferences(c)...)
		out = append(out, KeyInfo{
			Device: d.Name(),
			Check:  c.Name,
			Key:    diffs.AsPropertyKey(),
			Path:   diffs.AsFilePath(),
		})
	}
	return out, nil
}

// ResolveDevices picks the devices to run: names when given, otherwise the
// scenario's devices, otherwise every device in the catalog. Without a
// catalog and without names the scenario runs once with no device.
func ResolveDevices(s *Scenario, cat *device.Catalog, names []string) ([]device.Device, error) {
	if len(names) == 0 {
		names = s.Devices
	}
	if cat == nil {
		if len(names) > 0 {
			return nil, fmt.Errorf("devices %s requested but no catalog given", strings.Join(names, ", "))
		}
		return []device.Device{{}}, nil
	}
	if len(names) == 0 {
		if cat.Len() == 0 {
			return nil, errors.New("device catalog is empty")
		}
		return cat.All(), nil
	}
	out := make([]device.Device, 0, len(names))
	for _, n := range names {
		d, ok := cat.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown device %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}

func checkDifferences(c Check) []differences.Difference {
	out := make([]differences.Difference, 0, len(c.Differences)+1)
	for _, tag := range c.Differences {
		out = append(out, differences.NewFixed("Difference", tag))
	}
	return append(out, differences.NewFixed(checkDimension, c.Name))
}

var stringKinds = map[string]func(string, sampling.Sampler[string], ...verification.Option) (*verification.Verification[string], error){
	KindEquals:   verification.Equals,
	KindContains: verification.Contains,
	KindPattern:  verification.Pattern,
}

// buildCheck turns a scenario check into a verification bound to sess. The
// returned poll config is non-nil for checks that are polled.
func buildCheck(sess *session.Session, c Check) (verification.Checker, *stability.PollConfig, error) {
	raw, err := sess.Sampler(c.Sampler, c.Args)
	if err != nil {
		return nil, nil, err
	}
	opts := sess.Options(checkDifferences(c)...)

	if c.Kind == KindStable {
		timeout, interval, err := c.pollDurations()
		if err != nil {
			return nil, nil, err
		}
		check, err := verification.StableString(c.Name, raw, opts...)
		if err != nil {
			return nil, nil, err
		}
		return check, &stability.PollConfig{Timeout: timeout, Interval: interval}, nil
	}

	text := session.Cached(sess, c.Name, raw)
	switch c.Kind {
	case KindEquals, KindContains, KindPattern:
		v, err := stringKinds[c.Kind](c.Name, text, opts...)
		if err != nil {
			return nil, nil, err
		}
		return v, nil, applyExpected(v, c, verification.StringCodec)
	case KindInt:
		v, err := verification.IntEquals(c.Name, parsed(text, verification.IntCodec), opts...)
		if err != nil {
			return nil, nil, err
		}
		return v, nil, applyExpected(v, c, verification.IntCodec)
	case KindFloat:
		v, err := verification.FloatTolerance(c.Name, parsed(text, verification.FloatCodec), c.Tolerance, opts...)
		if err != nil {
			return nil, nil, err
		}
		return v, nil, applyExpected(v, c, verification.FloatCodec)
	}
	return nil, nil, sampling.NewConfigError(sampling.ErrCodeInvalidArg, "unknown check kind %q", c.Kind)
}

// applyExpected applies the inline expected value of a check, if any.
func applyExpected[T any](v *verification.Verification[T], c Check, codec verification.Codec[T]) error {
	switch {
	case c.Absent:
		v.SetExpectedAbsent()
	case c.Expected != nil:
		value, err := codec.Parse(*c.Expected)
		if err != nil {
			return &sampling.ConfigError{
				Code:    sampling.ErrCodeInvalidArg,
				Message: fmt.Sprintf("expected value %q", *c.Expected),
				Err:     err,
			}
		}
		v.SetExpected(value)
	}
	return nil
}

// parsed converts sampled text with codec. Text that does not parse fails
// the cycle.
func parsed[T any](s sampling.Sampler[string], codec verification.Codec[T]) sampling.Sampler[T] {
	return sampling.Transform(s, func(v string) (sampling.Sample[T], error) {
		out, err := codec.Parse(strings.TrimSpace(v))
		if err != nil {
			return sampling.Sample[T]{}, fmt.Errorf("parse %q: %w", v, unwrapNum(err))
		}
		return sampling.Of(out), nil
	})
}

// unwrapNum drops the strconv wrapper, which repeats the input.
func unwrapNum(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}

func runCheck(ctx context.Context, c verification.Checker, check Check, poll *stability.PollConfig) CheckResult {
	out := CheckResult{Kind: check.Kind, Expect: check.Expect}
	if out.Expect == "" {
		out.Expect = ExpectPass
	}
	if poll == nil {
		out.Result = c.Verify(ctx)
		return out
	}

	attempts := 0
	counted := countingChecker{Checker: c, n: &attempts}
	res, _ := verification.Await(ctx, counted, *poll)
	out.Result = res
	out.Attempts = attempts
	return out
}

type countingChecker struct {
	verification.Checker
	n *int
}

func (c countingChecker) Verify(ctx context.Context) verification.Result {
	*c.n++
	return c.Checker.Verify(ctx)
}

func deviceLabel(d device.Device) string {
	if d.IsZero() {
		return "default device"
	}
	return d.Name()
}
