package source

import (
	"bytes"
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// Log is a Source over a growing buffer of log lines. Selectors are regular
// expressions: Find waits for the most recent matching line and returns its
// first capture group, or the whole line when the pattern has no groups.
// Log implements io.Writer so it can be attached to a process or logger.
type Log struct {
	mu      sync.Mutex
	lines   []string
	partial []byte
	changed chan struct{}
}

// NewLog creates an empty log source.
func NewLog() *Log {
	return &Log{changed: make(chan struct{})}
}

// Append adds complete lines.
func (l *Log) Append(lines ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, lines...)
	l.notifyLocked()
}

// Write splits p into lines of any length. A trailing partial line is held
// until completed. A trailing '\r' is dropped from each line.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rest := append(l.partial, p...)
	added := false
	for {
		line, after, found := bytes.Cut(rest, []byte{'\n'})
		if !found {
			break
		}
		l.lines = append(l.lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
		added = true
		rest = after
	}
	l.partial = append([]byte(nil), rest...)
	if added {
		l.notifyLocked()
	}
	return len(p), nil
}

func (l *Log) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// Lines returns a copy of the complete lines.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Find waits up to timeout for a line matching selector.
func (l *Log) Find(ctx context.Context, selector string, timeout time.Duration) (sampling.Sample[string], error) {
	re, err := compileSelector(selector)
	if err != nil {
		return sampling.Sample[string]{}, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		l.mu.Lock()
		v, found := lastMatch(l.lines, re)
		changed := l.changed
		l.mu.Unlock()
		if found {
			return sampling.Of(v), nil
		}
		if timeout <= 0 {
			return sampling.Absent[string](), nil
		}
		select {
		case <-ctx.Done():
			return sampling.Sample[string]{}, sourceErr("find", selector, ctx.Err())
		case <-deadline.C:
			return sampling.Absent[string](), nil
		case <-changed:
		}
	}
}

// FindAll returns the extracted value of every matching line, oldest first.
func (l *Log) FindAll(_ context.Context, selector string) ([]string, error) {
	re, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []string{}
	for _, line := range l.lines {
		if v, ok := extract(line, re); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// CurrentValue returns the most recent complete line.
func (l *Log) CurrentValue(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return "", nil
	}
	return l.lines[len(l.lines)-1], nil
}

func compileSelector(selector string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(selector)
	if err != nil {
		return nil, &sampling.ConfigError{
			Code:    sampling.ErrCodeInvalidArg,
			Message: "invalid log selector " + selector,
			Err:     err,
		}
	}
	return re, nil
}

func lastMatch(lines []string, re *regexp.Regexp) (string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if v, ok := extract(lines[i], re); ok {
			return v, true
		}
	}
	return "", false
}

func extract(line string, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}
