package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/stability"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/testutil"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func conferenceDiffs() *differences.Differences {
	return differences.New(
		differences.NewFixed("Device", "Chrome_1024"),
		differences.NewFixed("Page", "conference-page!!"),
	)
}

// recorderFunc adapts a function to expected.Recorder.
type recorderFunc func(ctx context.Context, path, key, value string) error

func (f recorderFunc) RecordNewValue(ctx context.Context, path, key, value string) error {
	return f(ctx, path, key, value)
}

type recordedValue struct{ path, key, value string }

func capture(into *[]recordedValue) expected.Recorder {
	return recorderFunc(func(_ context.Context, path, key, value string) error {
		*into = append(*into, recordedValue{path, key, value})
		return nil
	})
}

func TestVerification_MissingExpectedReportsSentinel(t *testing.T) {
	v, err := Equals("title", testutil.Constant("Home"), quiet())
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.False(t, r.Passed)
	assert.Equal(t, Failed, v.State())
	assert.Contains(t, r.Message, NoExpectedValueSet)
	assert.Contains(t, r.Message, "Home")
	assert.Contains(t, r.Message, "title")
	assert.Empty(t, r.Error, "a missing expectation is a comparison failure, not an error")
}

func TestVerification_LooksUpExpectedByDifferencesKey(t *testing.T) {
	store := expected.Map{"Chrome_1024.conferencepage": "Conference"}
	v, err := Equals("headline", testutil.Constant("Conference"),
		WithDifferences(conferenceDiffs()), WithStore(store), quiet())
	require.NoError(t, err)

	assert.Equal(t, "Chrome_1024.conferencepage", v.Key())
	assert.Equal(t, "Chrome_1024/conferencepage", v.Path())

	r := v.Verify(context.Background())
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, "passed", r.State)
	assert.Equal(t, "Conference", r.Expected)
	assert.Equal(t, "headline: 'Conference' matches expected 'Conference'", r.Message)
}

func TestVerification_KeyFallsBackToSanitizedName(t *testing.T) {
	v, err := Equals("Page Title!", testutil.Constant("x"), quiet())
	require.NoError(t, err)
	assert.Equal(t, "PageTitle", v.Key())
	assert.Equal(t, "", v.Path())
}

func TestVerification_AbsencePolicy(t *testing.T) {
	tests := []struct {
		name     string
		actual   testutil.Step[string]
		expected *string
		passed   bool
	}{
		{"both absent", testutil.Nothing[string](), nil, true},
		{"actual absent", testutil.Nothing[string](), ptr("Home"), false},
		{"expected absent", testutil.Value("Home"), nil, false},
		{"both present equal", testutil.Value("Home"), ptr("Home"), true},
		{"both present different", testutil.Value("Home"), ptr("Start"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := expected.Map{}
			if tt.expected != nil {
				store["title"] = *tt.expected
			}
			v, err := Equals("title", testutil.NewScriptedSampler(tt.actual), WithStore(store), quiet())
			require.NoError(t, err)

			r := v.Verify(context.Background())
			assert.Equal(t, tt.passed, r.Passed, r.Message)
		})
	}
}

func TestVerification_AbsencePolicyIsUniformAcrossKinds(t *testing.T) {
	ctx := context.Background()
	store := expected.Map{}

	eq, err := Equals("a", testutil.NewScriptedSampler(testutil.Nothing[string]()), WithStore(store), quiet())
	require.NoError(t, err)
	contains, err := Contains("b", testutil.NewScriptedSampler(testutil.Nothing[string]()), WithStore(store), quiet())
	require.NoError(t, err)
	pattern, err := Pattern("c", testutil.NewScriptedSampler(testutil.Nothing[string]()), WithStore(store), quiet())
	require.NoError(t, err)
	ints, err := IntEquals("d", testutil.NewScriptedSampler(testutil.Nothing[int]()), WithStore(store), quiet())
	require.NoError(t, err)
	floats, err := FloatTolerance("e", testutil.NewScriptedSampler(testutil.Nothing[float64]()), 0.5, WithStore(store), quiet())
	require.NoError(t, err)
	bools, err := BoolEquals("f", testutil.NewScriptedSampler(testutil.Nothing[bool]()), WithStore(store), quiet())
	require.NoError(t, err)

	for _, r := range VerifyAll(ctx, eq, contains, pattern, ints, floats, bools) {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Message)
		assert.Equal(t, NoValueFound, r.Actual)
		assert.Equal(t, NoExpectedValueSet, r.Expected)
	}
}

func TestVerification_SamplingErrorFailsWithMessage(t *testing.T) {
	boom := errors.New("element detached")
	v, err := Equals("title", testutil.NewScriptedSampler(testutil.Fail[string](boom)), quiet())
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.False(t, r.Passed)
	assert.Equal(t, Failed, v.State())
	assert.ErrorIs(t, v.Err(), boom)
	assert.Contains(t, r.Message, "sampling failed")
	assert.Contains(t, r.Message, "element detached")
	assert.Equal(t, "element detached", r.Error)
}

func TestVerification_CachingSamplerDegradesInsteadOfFailing(t *testing.T) {
	inner := testutil.NewScriptedSampler(testutil.Fail[string](&sampling.SourceError{Op: "find", Selector: "h1", Err: sampling.ErrUnavailable}))
	cached := sampling.NewCaching[string]("h1", inner, sampling.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	v, err := Equals("title", cached, WithStore(expected.Map{}), quiet())
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.True(t, r.Passed, "degraded absent actual vs missing expected passes: %s", r.Message)
	assert.Empty(t, r.Error)
}

func TestVerification_SetExpectedOverridesStore(t *testing.T) {
	store := expected.Map{"title": "Start"}
	v, err := Equals("title", testutil.Constant("Home"), WithStore(store), quiet())
	require.NoError(t, err)

	v.SetExpected("Home")
	assert.True(t, v.Verify(context.Background()).Passed)

	v.ResetExpected()
	assert.False(t, v.Verify(context.Background()).Passed)

	v.SetExpectedAbsent()
	r := v.Verify(context.Background())
	assert.False(t, r.Passed)
	assert.Equal(t, NoExpectedValueSet, r.Expected)
}

func TestVerification_ExpectedResolvedOncePerInstance(t *testing.T) {
	store := expected.Map{"title": "Home"}
	v, err := Equals("title", testutil.Constant("Home"), WithStore(store), quiet())
	require.NoError(t, err)

	assert.True(t, v.Verify(context.Background()).Passed)
	store["title"] = "Changed"
	assert.True(t, v.Verify(context.Background()).Passed, "expected value is cached after first lookup")
}

func TestVerification_MalformedExpectedIsError(t *testing.T) {
	v, err := IntEquals("count", testutil.Constant(3), WithStore(expected.Map{"count": "three"}), quiet())
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Error)
	assert.True(t, sampling.IsConfigError(v.Err()))
}

func TestVerification_RecordModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     RecordMode
		actual   string
		recorded int
	}{
		{"always records failing cycle", RecordAlways, "Home", 1},
		{"on pass skips failing cycle", RecordOnPass, "Home", 0},
		{"on pass records passing cycle", RecordOnPass, "Start", 1},
		{"never", RecordNever, "Start", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []recordedValue
			v, err := Equals("title", testutil.Constant(tt.actual),
				WithDifferences(conferenceDiffs()),
				WithStore(expected.Map{"Chrome_1024.conferencepage": "Start"}),
				WithRecorder(capture(&got)),
				WithRecordMode(tt.mode),
				quiet())
			require.NoError(t, err)

			r := v.Verify(context.Background())
			require.Len(t, got, tt.recorded)
			assert.Equal(t, tt.recorded == 1, r.Recorded)
			if tt.recorded == 1 {
				assert.Equal(t, recordedValue{"Chrome_1024/conferencepage", "Chrome_1024.conferencepage", tt.actual}, got[0])
			}
		})
	}
}

func TestVerification_AbsentActualIsNeverRecorded(t *testing.T) {
	var got []recordedValue
	v, err := Equals("title", testutil.NewScriptedSampler(testutil.Nothing[string]()),
		WithRecorder(capture(&got)), quiet())
	require.NoError(t, err)

	v.Verify(context.Background())
	assert.Empty(t, got)
}

func TestVerification_RecordingFailureDoesNotChangeOutcome(t *testing.T) {
	failing := recorderFunc(func(context.Context, string, string, string) error {
		return errors.New("disk full")
	})
	v, err := Equals("title", testutil.Constant("Home"),
		WithStore(expected.Map{"title": "Home"}), WithRecorder(failing), quiet())
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.True(t, r.Passed)
	assert.False(t, r.Recorded)
}

func TestVerification_RecordsIntoExpectedDir(t *testing.T) {
	root := t.TempDir()
	dir, err := expected.Open(root, expected.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	v, err := IntEquals("links", testutil.Constant(3),
		WithDifferences(conferenceDiffs()), WithStore(dir), WithRecorder(dir), quiet())
	require.NoError(t, err)
	assert.False(t, v.Verify(context.Background()).Passed)

	_, err = expected.Promote(dir.RecordRoot(), filepath.Join(root, "expected.properties"), false)
	require.NoError(t, err)
	require.NoError(t, dir.Reload())

	v.ResetExpected()
	assert.True(t, v.Verify(context.Background()).Passed, "promoted value becomes the expectation")
}

func TestKinds_Predicates(t *testing.T) {
	ctx := context.Background()
	mk := func(v string) expected.Store { return expected.Map{"x": v} }

	contains, err := Contains("x", testutil.Constant("Conference 2024 in Berlin"), WithStore(mk("2024")), quiet())
	require.NoError(t, err)
	assert.True(t, contains.Verify(ctx).Passed)

	pattern, err := Pattern("x", testutil.Constant("Conference 2024"), WithStore(mk(`^Conference \d{4}$`)), quiet())
	require.NoError(t, err)
	assert.True(t, pattern.Verify(ctx).Passed)

	badPattern, err := Pattern("x", testutil.Constant("Conference"), WithStore(mk(`(`)), quiet())
	require.NoError(t, err)
	r := badPattern.Verify(ctx)
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Error)

	ints, err := IntEquals("x", testutil.Constant(3), WithStore(mk("3")), quiet())
	require.NoError(t, err)
	assert.True(t, ints.Verify(ctx).Passed)

	floats, err := FloatTolerance("x", testutil.Constant(1024.4), 0.5, WithStore(mk("1024")), quiet())
	require.NoError(t, err)
	assert.True(t, floats.Verify(ctx).Passed)

	tooFar, err := FloatTolerance("x", testutil.Constant(1025.0), 0.5, WithStore(mk("1024")), quiet())
	require.NoError(t, err)
	r = tooFar.Verify(ctx)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "±0.5")

	bools, err := BoolEquals("x", testutil.Constant(true), WithStore(mk("true")), quiet())
	require.NoError(t, err)
	assert.True(t, bools.Verify(ctx).Passed)
}

func TestKinds_ConfigurationErrors(t *testing.T) {
	_, err := Equals("x", nil)
	assert.True(t, sampling.IsConfigError(err))

	_, err = FloatTolerance("x", testutil.Constant(1.0), -1)
	assert.True(t, sampling.IsConfigError(err))

	_, err = New[string]("x", testutil.Constant("a"), Codec[string]{}, func(a, b string) (bool, error) { return true, nil })
	assert.True(t, sampling.IsConfigError(err))

	_, err = ParseRecordMode("sometimes")
	assert.True(t, sampling.IsConfigError(err))
}

func TestWithMessages_OverridesTemplates(t *testing.T) {
	v, err := Equals("title", testutil.Constant("Home"),
		WithStore(expected.Map{"title": "Start"}),
		WithMessages(Messages{Fail: "{name} was {actual}, wanted {expected}"}),
		quiet())
	require.NoError(t, err)

	assert.Equal(t, "title was Home, wanted Start", v.Verify(context.Background()).Message)
}

func TestVerification_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ctx := context.Background()

	pass, err := Equals("a", testutil.Constant("x"), WithStore(expected.Map{"a": "x"}), WithMetrics(m), quiet())
	require.NoError(t, err)
	fail, err := Equals("b", testutil.Constant("x"), WithMetrics(m), WithRecorder(capture(new([]recordedValue))), quiet())
	require.NoError(t, err)
	broken, err := Equals("c", testutil.NewScriptedSampler(testutil.Fail[string](errors.New("x"))), WithMetrics(m), quiet())
	require.NoError(t, err)

	VerifyAll(ctx, pass, fail, broken)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Verifications.WithLabelValues(metrics.OutcomePassed)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Verifications.WithLabelValues(metrics.OutcomeFailed)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Verifications.WithLabelValues(metrics.OutcomeError)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RecordedValues))
}

func TestStable_ConvergesOnSecondCycle(t *testing.T) {
	c, err := StableString("spinner", testutil.Constant("done"), quiet())
	require.NoError(t, err)
	ctx := context.Background()

	first := c.Verify(ctx)
	assert.False(t, first.Passed, "first observation can never be stable")
	assert.Equal(t, "spinner: first observation 'done', stability needs a second sample", first.Message)
	assert.Empty(t, first.Expected)

	second := c.Verify(ctx)
	assert.True(t, second.Passed)
	assert.Equal(t, "spinner: stable at 'done'", second.Message)
}

func TestStable_FirstCycleIsNotAChange(t *testing.T) {
	c, err := StableString("banner", testutil.Sequence("old", "new"), quiet())
	require.NoError(t, err)
	ctx := context.Background()

	first := c.Verify(ctx)
	assert.NotContains(t, first.Message, NoValueFound)
	assert.NotContains(t, first.Message, "changed from")

	second := c.Verify(ctx)
	assert.False(t, second.Passed)
	assert.Equal(t, "banner: changed from 'old' to 'new'", second.Message)
	assert.Equal(t, "old", second.Expected)

	c.Reset()
	again := c.Verify(ctx)
	assert.Equal(t, "banner: first observation 'new', stability needs a second sample", again.Message)
}

func TestStable_DivergingSamplesFail(t *testing.T) {
	c, err := StableString("counter", testutil.Sequence("1", "2", "3"), quiet())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.False(t, c.Verify(ctx).Passed, "cycle %d", i)
	}
	r := c.Verify(ctx)
	assert.True(t, r.Passed, "sequence settles on its last value")
	assert.Equal(t, "3", r.Actual)
	assert.Equal(t, "3", r.Expected)
}

func TestStable_ResetStartsOver(t *testing.T) {
	c, err := StableString("x", testutil.Constant("a"), quiet())
	require.NoError(t, err)
	ctx := context.Background()

	c.Verify(ctx)
	require.True(t, c.Verify(ctx).Passed)
	c.Reset()
	assert.Equal(t, Pending, c.State())
	assert.False(t, c.Verify(ctx).Passed)
}

func TestAwait_PollsUntilStable(t *testing.T) {
	c, err := StableString("x", testutil.Sequence("a", "b", "c", "c"), quiet())
	require.NoError(t, err)

	r, err := Await(context.Background(), c, stability.PollConfig{Timeout: 5 * time.Second, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.True(t, r.Passed)
	assert.Equal(t, "c", r.Actual)
}

func TestAwait_TimesOut(t *testing.T) {
	v, err := Equals("title", testutil.Constant("Home"), WithStore(expected.Map{"title": "Start"}), quiet())
	require.NoError(t, err)

	r, err := Await(context.Background(), v, stability.PollConfig{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond})
	require.ErrorIs(t, err, stability.ErrTimeout)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "gave up after")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "comparing", Comparing.String())
	assert.True(t, Passed.Terminal())
	assert.False(t, Sampling.Terminal())
	assert.Equal(t, "State(42)", State(42).String())
}

func ptr(s string) *string { return &s }
