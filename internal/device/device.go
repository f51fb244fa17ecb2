// Package device describes the browser/viewport combination a test runs on.
//
// A Device is an immutable value. Differences keyed on the current device and
// samplers that need viewport-relative behaviour consume it; catalogs of
// devices are declared in CUE (see LoadCatalog).
package device

import (
	"fmt"
	"slices"
	"strings"
)

// Browser identifies a browser family.
type Browser string

// Known browser kinds.
const (
	Chrome   Browser = "chrome"
	Firefox  Browser = "firefox"
	Safari   Browser = "safari"
	Edge     Browser = "edge"
	Headless Browser = "headless"
)

// Viewport is a window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders "WIDTHxHEIGHT".
func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Device is the immutable context descriptor {name, browser, viewport, tags}.
type Device struct {
	name     string
	browser  Browser
	viewport Viewport
	tags     []string
}

// New creates a device. Tags are copied and sorted.
func New(name string, browser Browser, viewport Viewport, tags ...string) Device {
	t := slices.Clone(tags)
	slices.Sort(t)
	return Device{
		name:     name,
		browser:  browser,
		viewport: viewport,
		tags:     slices.Compact(t),
	}
}

// Name returns the device name.
func (d Device) Name() string { return d.name }

// Browser returns the browser kind.
func (d Device) Browser() Browser { return d.browser }

// Viewport returns the viewport size.
func (d Device) Viewport() Viewport { return d.viewport }

// Tags returns a copy of the device tags.
func (d Device) Tags() []string { return slices.Clone(d.tags) }

// HasTag reports whether the device carries tag.
func (d Device) HasTag(tag string) bool {
	_, found := slices.BinarySearch(d.tags, tag)
	return found
}

// IsZero reports whether d is the zero device.
func (d Device) IsZero() bool {
	return d.name == "" && d.browser == "" && d.viewport == (Viewport{}) && len(d.tags) == 0
}

// String renders "name (browser WIDTHxHEIGHT)".
func (d Device) String() string {
	var b strings.Builder
	b.WriteString(d.name)
	fmt.Fprintf(&b, " (%s %s)", d.browser, d.viewport)
	return b.String()
}
