// Package metrics exposes Prometheus instrumentation for sampling and verification.
//
// All methods are safe to call on a nil *Metrics, so components can take an
// optional metrics dependency without guarding every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample outcome labels.
const (
	SamplePresent  = "present"
	SampleDegraded = "degraded"
	SampleError    = "error"
)

// Verification outcome labels.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Metrics provides observability for samplers, verifications and stability checks.
type Metrics struct {
	Samples              *prometheus.CounterVec
	CacheHits            *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	StabilityChecks      *prometheus.CounterVec
	RecordedValues       prometheus.Counter
}

// New creates a Metrics instance registered with reg. Pass
// prometheus.DefaultRegisterer for process-wide metrics or a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galenium_samples_total",
			Help: "Total number of fresh acquisitions by sampler and outcome",
		}, []string{"sampler", "outcome"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galenium_sample_cache_hits_total",
			Help: "Total number of samples served from a sampler cache",
		}, []string{"sampler"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galenium_verifications_total",
			Help: "Total number of verification cycles by outcome",
		}, []string{"outcome"}),
		VerificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "galenium_verification_duration_seconds",
			Help:    "Duration of a verification cycle including sampling",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StabilityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galenium_stability_checks_total",
			Help: "Total number of stability checks by result",
		}, []string{"stable"}),
		RecordedValues: f.NewCounter(prometheus.CounterOpts{
			Name: "galenium_recorded_values_total",
			Help: "Total number of sampled values persisted as baseline candidates",
		}),
	}
}

// ObserveSample records one fresh acquisition.
func (m *Metrics) ObserveSample(sampler, outcome string) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(sampler, outcome).Inc()
}

// ObserveCacheHit records a sample served from cache.
func (m *Metrics) ObserveCacheHit(sampler string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(sampler).Inc()
}

// ObserveVerification records the outcome and duration of a verification cycle.
// Call with time.Now() at the start of the cycle.
func (m *Metrics) ObserveVerification(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

// ObserveStability records a stability check result.
func (m *Metrics) ObserveStability(stable bool) {
	if m == nil {
		return
	}
	label := "false"
	if stable {
		label = "true"
	}
	m.StabilityChecks.WithLabelValues(label).Inc()
}

// IncrementRecorded records a persisted baseline candidate.
func (m *Metrics) IncrementRecorded() {
	if m == nil {
		return
	}
	m.RecordedValues.Inc()
}
