package expected

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/magiconair/properties"
)

// ParseError reports a malformed line in a properties file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// libraryError matches the line-located errors of the properties parser.
var libraryError = regexp.MustCompile(`Line (\d+): (.*)$`)

// Parse reads a Java-style properties file: '=', ':' or whitespace
// separators, '#' and '!' comments, \uXXXX escapes and '\' line
// continuations. ${...} references are kept literally. Later duplicates win.
//
// filename is only used in error messages.
func Parse(r io.Reader, filename string) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	for n, line := range bytes.Split(data, []byte("\n")) {
		if !utf8.Valid(line) {
			return nil, &ParseError{File: filename, Line: n + 1, Message: "invalid UTF-8"}
		}
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		pe := &ParseError{File: filename, Message: err.Error()}
		if m := libraryError.FindStringSubmatch(err.Error()); m != nil {
			pe.Line, _ = strconv.Atoi(m[1])
			pe.Message = m[2]
		}
		return nil, pe
	}
	return p.Map(), nil
}

// Write emits values sorted by key, one "key = value" entry per line.
func Write(w io.Writer, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		if err := checkKey(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, k := range keys {
		if _, _, err := p.Set(k, values[k]); err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return err
	}

	// Values are written one per line in key order. A leading space is not
	// escaped by the writer and would be trimmed on reload.
	lines := strings.SplitAfter(buf.String(), "\n")
	for i, k := range keys {
		if i < len(lines) && strings.HasPrefix(values[k], " ") {
			if sep := strings.Index(lines[i], " = "); sep >= 0 {
				lines[i] = lines[i][:sep+3] + `\` + lines[i][sep+3:]
			}
		}
	}
	_, err := io.WriteString(w, strings.Join(lines, ""))
	return err
}

func checkKey(k string) error {
	switch {
	case strings.TrimSpace(k) == "":
		return fmt.Errorf("invalid key %q: empty", k)
	case strings.ContainsAny(k, "=\n\r"):
		return fmt.Errorf("invalid key %q: contains '=' or a line break", k)
	case k[0] == '#' || k[0] == '!':
		return fmt.Errorf("invalid key %q: starts with a comment marker", k)
	}
	return nil
}
