package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/source"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/testutil"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/verification"
)

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestSession_DifferencesFollowTestIdentity(t *testing.T) {
	d := device.New("Chrome_1024", device.Chrome, device.Viewport{Width: 1024, Height: 768})
	s := newSession(t, Config{Device: d})

	assert.Equal(t, "Chrome_1024", s.Differences().AsPropertyKey())

	s.StartTest("conference.PageTest", "verifyHeadline")
	key := s.Differences(differences.NewFixed("Check", "title")).AsPropertyKey()
	assert.Equal(t, "Chrome_1024.PageTest.verifyHeadline.title", key)
	assert.Equal(t, "conference.PageTest", s.TestClass())
	assert.Equal(t, "verifyHeadline", s.TestMethod())

	s.Reset()
	assert.Empty(t, s.TestMethod())
	assert.Equal(t, "Chrome_1024", s.Differences().AsPropertyKey())
}

func TestSession_WithoutDeviceHasNoDeviceDimension(t *testing.T) {
	s := newSession(t, Config{})
	assert.Zero(t, s.Differences().Len())
}

func TestSession_ResetInvalidatesTrackedCaches(t *testing.T) {
	s := newSession(t, Config{})
	inner := testutil.Sequence("first", "second")
	c := Cached[string](s, "title", inner)
	ctx := context.Background()

	v, err := sampling.Value[string](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = sampling.Value[string](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "first", v, "cached within a test")
	assert.Equal(t, 1, inner.Calls())

	s.Invalidate()
	v, err = sampling.Value[string](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	s.Reset()
	_, err = sampling.Value[string](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.Calls(), "reset clears the cache")
}

func TestSession_SamplerUsesSourceRegistry(t *testing.T) {
	src := source.NewMemory().Set("h1", "Conference")
	s := newSession(t, Config{Source: src})

	sampler, err := s.Sampler("text", sampling.Args{"selector": "h1"})
	require.NoError(t, err)
	got, err := sampler.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Conference", got.Value)

	_, err = s.Sampler("nope", nil)
	assert.ErrorIs(t, err, sampling.ErrUnknownKind)
}

func TestSession_SamplerWithoutRegistry(t *testing.T) {
	s := newSession(t, Config{})
	_, err := s.Sampler("text", nil)
	assert.True(t, sampling.IsConfigError(err))
}

func TestSession_OptionsWireStoreAndRecorder(t *testing.T) {
	d := device.New("Chrome_1024", device.Chrome, device.Viewport{Width: 1024, Height: 768})
	store := expected.Map{"Chrome_1024.title": "Home"}

	var recorded []string
	rec := recorderFunc(func(_ context.Context, path, key, value string) error {
		recorded = append(recorded, path+"|"+key+"|"+value)
		return nil
	})

	s := newSession(t, Config{Device: d, Expected: store, Recorder: rec, RecordMode: verification.RecordOnPass})
	v, err := verification.Equals("title", testutil.Constant("Home"), s.Options(differences.NewFixed("Check", "title"))...)
	require.NoError(t, err)

	r := v.Verify(context.Background())
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, []string{"Chrome_1024/title|Chrome_1024.title|Home"}, recorded)
}

type recorderFunc func(ctx context.Context, path, key, value string) error

func (f recorderFunc) RecordNewValue(ctx context.Context, path, key, value string) error {
	return f(ctx, path, key, value)
}
