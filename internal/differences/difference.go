// Package differences derives hierarchical keys from orthogonal naming dimensions.
//
// A Difference is one dimension (test class, test method, device, browser,
// viewport, an environment setting, a fixed string). Its tag is the raw tag
// sanitized to a filesystem- and property-key-safe token of bounded length.
// Differences is an ordered collection whose insertion order defines the
// hierarchy: AsPropertyKey joins the tags with "." to look up expected values,
// AsFilePath joins them with "/" to decide where newly observed values are
// persisted. Both are pure functions of the contained differences.
package differences

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Default tag length limits.
const (
	DefaultMaxTagLength    = 20
	TestMethodMaxTagLength = 50
)

// Difference is one naming dimension.
type Difference interface {
	// Name identifies the dimension (e.g. "Browser", "TestMethod").
	Name() string

	// RawTag is the unsanitized value for the current context.
	RawTag() string
}

// TagLimiter is implemented by differences that override DefaultMaxTagLength.
type TagLimiter interface {
	MaxTagLength() int
}

// Tag returns the sanitized tag of d.
func Tag(d Difference) string {
	return Sanitize(d.RawTag(), MaxTagLength(d))
}

// MaxTagLength returns the tag length limit of d.
func MaxTagLength(d Difference) int {
	if l, ok := d.(TagLimiter); ok && l.MaxTagLength() > 0 {
		return l.MaxTagLength()
	}
	return DefaultMaxTagLength
}

// Sanitize folds accented letters to their base letter, drops every character
// outside [A-Za-z0-9_] and truncates to max characters. A non-positive max
// disables truncation. Sanitize is idempotent.
func Sanitize(s string, max int) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
			if max > 0 && b.Len() >= max {
				break
			}
		}
	}
	return b.String()
}

// DefaultName derives a dimension name from the Go type of v: the package
// qualifier, pointer marker and a trailing "Difference" are stripped.
func DefaultName(v any) string {
	name := fmt.Sprintf("%T", v)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, "Difference")
}

// limited overrides the tag length of a wrapped difference.
type limited struct {
	Difference
	max int
}

func (l limited) MaxTagLength() int { return l.max }

// WithMaxTagLength returns d with a different tag length limit.
func WithMaxTagLength(d Difference, max int) Difference {
	return limited{Difference: d, max: max}
}
