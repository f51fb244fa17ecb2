package differences

import "strings"

// Differences is an ordered collection of Difference values. Insertion order
// is significant: it determines depth in the derived key and path.
//
// A Differences is owned by one test execution at a time.
type Differences struct {
	items []Difference
}

// New creates a collection holding ds in order. Nil entries are skipped.
func New(ds ...Difference) *Differences {
	c := &Differences{}
	c.Add(ds...)
	return c
}

// Add appends ds. Nil entries are skipped.
func (c *Differences) Add(ds ...Difference) *Differences {
	for _, d := range ds {
		if d != nil {
			c.items = append(c.items, d)
		}
	}
	return c
}

// AddFirst prepends d, making it the top of the hierarchy.
func (c *Differences) AddFirst(d Difference) *Differences {
	if d != nil {
		c.items = append([]Difference{d}, c.items...)
	}
	return c
}

// AddAll appends every difference of other.
func (c *Differences) AddAll(other *Differences) *Differences {
	if other != nil {
		c.items = append(c.items, other.items...)
	}
	return c
}

// Clone returns an independent copy.
func (c *Differences) Clone() *Differences {
	return &Differences{items: c.All()}
}

// Len returns the number of differences.
func (c *Differences) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// All returns the differences in order.
func (c *Differences) All() []Difference {
	if c == nil {
		return nil
	}
	return append([]Difference(nil), c.items...)
}

// Names returns the dimension names in order.
func (c *Differences) Names() []string {
	names := make([]string, 0, c.Len())
	for _, d := range c.All() {
		names = append(names, d.Name())
	}
	return names
}

// Tags returns the sanitized tags in order.
func (c *Differences) Tags() []string {
	tags := make([]string, 0, c.Len())
	for _, d := range c.All() {
		tags = append(tags, Tag(d))
	}
	return tags
}

// AsPropertyKey joins the tags with ".". An empty collection yields "".
func (c *Differences) AsPropertyKey() string {
	return strings.Join(c.Tags(), ".")
}

// AsFilePath joins the tags with "/". An empty collection yields "".
func (c *Differences) AsFilePath() string {
	return strings.Join(c.Tags(), "/")
}

// String renders "Name=tag" pairs for logs.
func (c *Differences) String() string {
	parts := make([]string, 0, c.Len())
	for _, d := range c.All() {
		parts = append(parts, d.Name()+"="+Tag(d))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
