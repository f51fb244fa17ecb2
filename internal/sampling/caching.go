package sampling

import (
	"context"
	"log/slog"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
)

// Stats counts what a Caching sampler has done since it was created.
type Stats struct {
	// Hits is the number of samples served from the cache.
	Hits int

	// Acquisitions is the number of times the inner sampler was invoked.
	Acquisitions int

	// Degraded is the number of acquisitions that resolved to the null value,
	// either because the inner sampler found nothing or because it failed
	// recoverably.
	Degraded int
}

// Option configures a Caching sampler.
type Option func(*options)

type options struct {
	caching bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithCaching sets the initial caching flag. Caching is disabled by default.
func WithCaching(enabled bool) Option {
	return func(o *options) { o.caching = enabled }
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records acquisitions and cache hits.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Caching decorates a Sampler with a cache slot and the null-value policy.
//
// When caching is enabled and a present value is cached, Sample returns it
// without invoking the inner sampler. Otherwise the cache is invalidated and a
// fresh sample is taken:
//
//   - an absent sample resolves to the null value (absent by default), which
//     is stored in the cache slot,
//   - a recoverable error (see IsRecoverable) is logged and resolves to the
//     null value; it is neither returned nor cached,
//   - any other error propagates unchanged,
//   - a present sample is cached and returned.
//
// A present null value set with WithNullValue is therefore served from the
// cache like any acquired value until InvalidateCache. Failed acquisitions are
// retried on the next call.
//
// A Caching sampler is owned by a single test execution and is not safe for
// concurrent use.
type Caching[T any] struct {
	name    string
	inner   Sampler[T]
	null    Sample[T]
	caching bool
	cached  Sample[T]
	stats   Stats
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCaching wraps inner. The name identifies the sampler in logs and metrics.
func NewCaching[T any](name string, inner Sampler[T], opts ...Option) *Caching[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Caching[T]{
		name:    name,
		inner:   inner,
		caching: o.caching,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// WithNullValue sets the value returned when acquisition finds nothing or
// fails recoverably. The default is the absent sample.
func (c *Caching[T]) WithNullValue(v T) *Caching[T] {
	c.null = Of(v)
	return c
}

// NullValue returns the configured null-value policy result.
func (c *Caching[T]) NullValue() Sample[T] {
	return c.null
}

// Name returns the sampler name.
func (c *Caching[T]) Name() string {
	return c.name
}

// IsCaching reports whether cached values are served.
func (c *Caching[T]) IsCaching() bool {
	return c.caching
}

// SetCaching toggles cache use. Disabling does not clear the slot.
func (c *Caching[T]) SetCaching(enabled bool) {
	c.caching = enabled
}

// InvalidateCache clears the cached slot. Safe to call at any time.
func (c *Caching[T]) InvalidateCache() {
	c.cached = Sample[T]{}
}

// Stats returns acquisition counters.
func (c *Caching[T]) Stats() Stats {
	return c.stats
}

// Sample returns the cached value or acquires a fresh one.
func (c *Caching[T]) Sample(ctx context.Context) (Sample[T], error) {
	if c.caching && c.cached.Present {
		c.stats.Hits++
		c.metrics.ObserveCacheHit(c.name)
		return c.cached, nil
	}

	c.InvalidateCache()
	if c.inner == nil {
		return Sample[T]{}, NewConfigError(ErrCodeNilDependency, "sampler %q has no inner sampler", c.name)
	}

	c.stats.Acquisitions++
	fresh, err := c.inner.Sample(ctx)
	if err != nil {
		if !IsRecoverable(err) {
			c.metrics.ObserveSample(c.name, metrics.SampleError)
			return Sample[T]{}, err
		}
		c.logger.Debug("sampling failed, using null value",
			"sampler", c.name,
			"error", err,
		)
		return c.degrade(), nil
	}

	if !fresh.Present {
		c.logger.Debug("no value found, using null value", "sampler", c.name)
		null := c.degrade()
		c.cached = null
		return null, nil
	}

	c.metrics.ObserveSample(c.name, metrics.SamplePresent)
	c.cached = fresh
	return fresh, nil
}

func (c *Caching[T]) degrade() Sample[T] {
	c.stats.Degraded++
	c.metrics.ObserveSample(c.name, metrics.SampleDegraded)
	return c.null
}
