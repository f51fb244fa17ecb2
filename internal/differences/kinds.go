package differences

import (
	"os"
	"strings"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
)

// Fixed is a difference with a constant tag.
type Fixed struct {
	name string
	tag  string
}

// NewFixed creates a fixed difference. An empty name defaults to "Fixed".
func NewFixed(name, tag string) Fixed {
	if name == "" {
		name = DefaultName(Fixed{})
	}
	return Fixed{name: name, tag: tag}
}

func (f Fixed) Name() string { return f.name }
func (f Fixed) RawTag() string { return f.tag }

// TestClass keys on the test suite. It accepts a dotted class name
// ("com.example.HomePageTest") or a Go test name ("TestHomePage/desktop") and
// keeps the simple suite name.
type TestClass struct {
	suite string
}

// NewTestClass creates a test class difference.
func NewTestClass(name string) TestClass {
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return TestClass{suite: name}
}

func (TestClass) Name() string { return DefaultName(TestClass{}) }
func (c TestClass) RawTag() string { return c.suite }

// TestMethod keys on the individual test. For Go subtests only the part after
// the first "/" is used. Tags may be up to TestMethodMaxTagLength long.
type TestMethod struct {
	method string
}

// NewTestMethod creates a test method difference.
func NewTestMethod(name string) TestMethod {
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return TestMethod{method: name}
}

func (TestMethod) Name() string { return DefaultName(TestMethod{}) }
func (m TestMethod) RawTag() string { return m.method }
func (TestMethod) MaxTagLength() int { return TestMethodMaxTagLength }

// DeviceName keys on the device name.
type DeviceName struct {
	device device.Device
}

// NewDeviceName creates a device name difference.
func NewDeviceName(d device.Device) DeviceName {
	return DeviceName{device: d}
}

func (DeviceName) Name() string { return DefaultName(DeviceName{}) }
func (n DeviceName) RawTag() string { return n.device.Name() }

// Browser keys on the browser kind.
type Browser struct {
	device device.Device
}

// NewBrowser creates a browser difference.
func NewBrowser(d device.Device) Browser {
	return Browser{device: d}
}

func (Browser) Name() string { return DefaultName(Browser{}) }
func (b Browser) RawTag() string { return string(b.device.Browser()) }

// Viewport keys on the viewport size, rendered "WIDTHxHEIGHT".
type Viewport struct {
	device device.Device
}

// NewViewport creates a viewport difference.
func NewViewport(d device.Device) Viewport {
	return Viewport{device: d}
}

func (Viewport) Name() string { return DefaultName(Viewport{}) }
func (v Viewport) RawTag() string { return v.device.Viewport().String() }

// Env keys on an environment variable, falling back to a default when unset.
type Env struct {
	key    string
	def    string
	lookup func(string) (string, bool)
}

// NewEnv creates an environment difference reading key from the process
// environment.
func NewEnv(key, def string) Env {
	return Env{key: key, def: def, lookup: os.LookupEnv}
}

// NewEnvFrom is like NewEnv but reads from lookup.
func NewEnvFrom(key, def string, lookup func(string) (string, bool)) Env {
	return Env{key: key, def: def, lookup: lookup}
}

func (e Env) Name() string { return e.key }

func (e Env) RawTag() string {
	if e.lookup != nil {
		if v, ok := e.lookup(e.key); ok && v != "" {
			return v
		}
	}
	return e.def
}

// Func computes its raw tag lazily on every call.
type Func struct {
	name string
	fn   func() string
}

// NewFunc creates a lazily evaluated difference.
func NewFunc(name string, fn func() string) Func {
	return Func{name: name, fn: fn}
}

func (f Func) Name() string { return f.name }

func (f Func) RawTag() string {
	if f.fn == nil {
		return ""
	}
	return f.fn()
}
