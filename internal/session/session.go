// Package session holds the per-test execution context: the current device,
// live source, expected-value store, recorder and test identity.
//
// A Session is created by the test runner for one execution and handed to
// everything that needs it. It is never shared between concurrently running
// tests, so it carries no locks.
package session

import (
	"log/slog"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/differences"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/samplers"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/source"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/verification"
)

// Config holds the collaborators of a session. Only Source is required for
// building samplers by kind; everything else is optional.
type Config struct {
	Device     device.Device
	Source     source.Source
	Expected   expected.Store
	Recorder   expected.Recorder
	RecordMode verification.RecordMode

	// Registry builds samplers by kind. Default: the source-backed kinds
	// from package samplers.
	Registry *sampling.Registry[string]

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Invalidator is a cache that must be cleared between test cases.
type Invalidator interface {
	InvalidateCache()
}

// Session is the context of one test execution.
type Session struct {
	cfg        Config
	logger     *slog.Logger
	testClass  string
	testMethod string
	caches     []Invalidator
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil && cfg.Source != nil {
		reg, err := samplers.NewRegistry(cfg.Source)
		if err != nil {
			return nil, err
		}
		cfg.Registry = reg
	}
	s := &Session{cfg: cfg}
	s.logger = s.baseLogger()
	return s, nil
}

// Device returns the current device.
func (s *Session) Device() device.Device { return s.cfg.Device }

// Source returns the live value source.
func (s *Session) Source() source.Source { return s.cfg.Source }

// Expected returns the expected-value store.
func (s *Session) Expected() expected.Store { return s.cfg.Expected }

// Logger returns the session logger, annotated with the device and test.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Metrics returns the metrics sink, possibly nil.
func (s *Session) Metrics() *metrics.Metrics { return s.cfg.Metrics }

// StartTest sets the test identity. class is a qualified suite name
// ("pkg.Suite" or "pkg.Suite/Method"), method the test method name.
func (s *Session) StartTest(class, method string) {
	s.testClass = class
	s.testMethod = method
	s.logger = s.baseLogger().With("test", class+"/"+method)
}

func (s *Session) baseLogger() *slog.Logger {
	if s.cfg.Device.IsZero() {
		return s.cfg.Logger
	}
	return s.cfg.Logger.With("device", s.cfg.Device.Name())
}

// TestClass returns the current test class.
func (s *Session) TestClass() string { return s.testClass }

// TestMethod returns the current test method.
func (s *Session) TestMethod() string { return s.testMethod }

// Reset ends the current test case: every tracked cache is invalidated and
// forgotten, and the test identity is cleared.
func (s *Session) Reset() {
	for _, c := range s.caches {
		c.InvalidateCache()
	}
	s.caches = nil
	s.testClass = ""
	s.testMethod = ""
	s.logger = s.baseLogger()
}

// Track registers a cache to be invalidated on Reset and Invalidate.
func (s *Session) Track(c Invalidator) {
	s.caches = append(s.caches, c)
}

// Invalidate clears every tracked cache, e.g. before navigating.
func (s *Session) Invalidate() {
	for _, c := range s.caches {
		c.InvalidateCache()
	}
}

// Differences returns the naming dimensions of the current test: the device
// name, test class and test method when set, followed by extra.
func (s *Session) Differences(extra ...differences.Difference) *differences.Differences {
	d := differences.New()
	if !s.cfg.Device.IsZero() {
		d.Add(differences.NewDeviceName(s.cfg.Device))
	}
	if s.testClass != "" {
		d.Add(differences.NewTestClass(s.testClass))
	}
	if s.testMethod != "" {
		d.Add(differences.NewTestMethod(s.testMethod))
	}
	return d.Add(extra...)
}

// Options returns verification options bound to this session, with the
// differences of the current test plus extra.
func (s *Session) Options(extra ...differences.Difference) []verification.Option {
	return []verification.Option{
		verification.WithDifferences(s.Differences(extra...)),
		verification.WithStore(s.cfg.Expected),
		verification.WithRecorder(s.cfg.Recorder),
		verification.WithRecordMode(s.cfg.RecordMode),
		verification.WithLogger(s.logger),
		verification.WithMetrics(s.cfg.Metrics),
	}
}

// Sampler builds a sampler of the given kind from the session registry.
func (s *Session) Sampler(kind string, args sampling.Args) (sampling.Sampler[string], error) {
	if s.cfg.Registry == nil {
		return nil, sampling.NewConfigError(sampling.ErrCodeNilDependency, "session has no sampler registry")
	}
	return s.cfg.Registry.New(kind, args)
}

// Cached wraps inner in a caching sampler that the session tracks, so Reset
// and Invalidate clear it.
func Cached[T any](s *Session, name string, inner sampling.Sampler[T], opts ...sampling.Option) *sampling.Caching[T] {
	base := []sampling.Option{
		sampling.WithCaching(true),
		sampling.WithLogger(s.logger),
		sampling.WithMetrics(s.cfg.Metrics),
	}
	c := sampling.NewCaching(name, inner, append(base, opts...)...)
	s.Track(c)
	return c
}
