// Package source defines the live value source boundary samplers read from
// and provides implementations for a browser page (go-rod), an in-memory
// fixture and a log line buffer.
//
// A Source reports "not found" as an absent sample, never as an error. Errors
// are *sampling.SourceError values (recoverable, degraded by caching samplers)
// or *sampling.ConfigError values for malformed selectors.
package source

import (
	"context"
	"time"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// Source is a live value source such as a rendered page, a network capture or
// a log stream.
type Source interface {
	// Find waits up to timeout for selector to resolve and returns its value.
	// A selector that does not resolve in time yields an absent sample.
	Find(ctx context.Context, selector string, timeout time.Duration) (sampling.Sample[string], error)

	// FindAll returns the values of everything selector currently resolves to.
	// It does not wait.
	FindAll(ctx context.Context, selector string) ([]string, error)

	// CurrentValue returns the source's current overall value, e.g. the page URL.
	CurrentValue(ctx context.Context) (string, error)
}

func sourceErr(op, selector string, err error) error {
	return &sampling.SourceError{Op: op, Selector: selector, Err: err}
}
