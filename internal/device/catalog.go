package device

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ErrInvalidCatalog is wrapped by every catalog load failure.
var ErrInvalidCatalog = errors.New("invalid device catalog")

// catalogSchema constrains catalog files. Devices are declared under the
// top-level "devices" struct, keyed by name:
//
//	devices: desktop: {
//	    browser:  "chrome"
//	    viewport: {width: 1280, height: 800}
//	    tags: ["desktop"]
//	}
const catalogSchema = `
#Device: {
	browser: "chrome" | "firefox" | "safari" | "edge" | "headless"
	viewport: {
		width:  int & >0
		height: int & >0
	}
	tags: [...string] | *[]
}

devices: [string]: #Device
`

type deviceDecl struct {
	Browser  string   `json:"browser"`
	Viewport Viewport `json:"viewport"`
	Tags     []string `json:"tags"`
}

// Catalog is an ordered set of named devices.
type Catalog struct {
	devices []Device
}

// NewCatalog builds a catalog from devices in the given order.
func NewCatalog(devices ...Device) *Catalog {
	return &Catalog{devices: append([]Device(nil), devices...)}
}

// LoadCatalog reads and validates a CUE catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(path, src)
}

// ParseCatalog validates src against the catalog schema and decodes the
// devices in declaration order. filename is used in error positions.
func ParseCatalog(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(catalogSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, filename, err)
	}

	value := schema.Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, filename, err)
	}

	devicesVal := value.LookupPath(cue.ParsePath("devices"))
	if !devicesVal.Exists() {
		return &Catalog{}, nil
	}

	iter, err := devicesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("%w: iterating devices: %v", ErrInvalidCatalog, err)
	}

	cat := &Catalog{}
	for iter.Next() {
		var decl deviceDecl
		if err := iter.Value().Decode(&decl); err != nil {
			return nil, fmt.Errorf("%w: device %s: %v", ErrInvalidCatalog, iter.Label(), err)
		}
		cat.devices = append(cat.devices, New(iter.Label(), Browser(decl.Browser), decl.Viewport, decl.Tags...))
	}
	return cat, nil
}

// Get returns the device with the given name.
func (c *Catalog) Get(name string) (Device, bool) {
	for _, d := range c.devices {
		if d.Name() == name {
			return d, true
		}
	}
	return Device{}, false
}

// All returns every device in declaration order.
func (c *Catalog) All() []Device {
	return append([]Device(nil), c.devices...)
}

// Tagged returns the devices carrying tag, in declaration order.
func (c *Catalog) Tagged(tag string) []Device {
	var out []Device
	for _, d := range c.devices {
		if d.HasTag(tag) {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of devices.
func (c *Catalog) Len() int {
	return len(c.devices)
}
