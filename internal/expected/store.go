// Package expected holds the expected-value store verifications compare
// against: a flat key to string mapping loaded from *.properties files, plus
// the recording side that persists newly observed values under a directory
// derived from a Differences file path so they can later be promoted.
//
// Reads are lock-free against an immutable snapshot that Reload swaps
// atomically. Writes through RecordNewValue are serialized by a mutex.
package expected

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// RecordedFile is the file name new values are written to inside a recording
// directory.
const RecordedFile = "recorded.properties"

// DefaultRecordDir is the recording directory used when none is configured,
// relative to the store root. It is excluded from loading.
const DefaultRecordDir = "_recorded"

// Store resolves expected values by property key.
type Store interface {
	Get(key string) (string, bool)
}

// Recorder persists an observed value as a candidate baseline. path is a
// Differences file path, key the full property key.
type Recorder interface {
	RecordNewValue(ctx context.Context, path, key, value string) error
}

// Map is an in-memory Store.
type Map map[string]string

// Get returns the value stored for key.
func (m Map) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Dir is a Store backed by every *.properties file below a root directory,
// and a Recorder writing to <recordRoot>/<path>/recorded.properties.
type Dir struct {
	root       string
	recordRoot string
	logger     *slog.Logger

	values atomic.Pointer[map[string]string]

	mu sync.Mutex // serializes RecordNewValue and Reload
}

// Option configures a Dir.
type Option func(*Dir)

// WithRecordRoot sets where new values are recorded.
func WithRecordRoot(dir string) Option {
	return func(d *Dir) { d.recordRoot = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dir) { d.logger = l }
}

// Open loads every *.properties file below root. A missing root yields an
// empty store, so verifications can start in recording mode. A malformed file
// is a *ParseError.
func Open(root string, opts ...Option) (*Dir, error) {
	d := &Dir{root: root}
	for _, opt := range opts {
		opt(d)
	}
	if d.recordRoot == "" {
		d.recordRoot = filepath.Join(root, DefaultRecordDir)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Root returns the directory expected values are loaded from.
func (d *Dir) Root() string { return d.root }

// RecordRoot returns the directory new values are recorded under.
func (d *Dir) RecordRoot() string { return d.recordRoot }

// Get returns the expected value for key.
func (d *Dir) Get(key string) (string, bool) {
	m := d.values.Load()
	if m == nil {
		return "", false
	}
	v, ok := (*m)[key]
	return v, ok
}

// Len returns the number of loaded keys.
func (d *Dir) Len() int {
	if m := d.values.Load(); m != nil {
		return len(*m)
	}
	return 0
}

// Keys returns the loaded keys in sorted order.
func (d *Dir) Keys() []string {
	m := d.values.Load()
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(*m))
	for k := range *m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload re-reads the root directory and swaps the snapshot. On error the
// previous snapshot stays in place.
func (d *Dir) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	values, err := loadDir(d.root, d.recordRoot, d.logger)
	if err != nil {
		return err
	}
	d.values.Store(&values)
	d.logger.Debug("expected: loaded values", "root", d.root, "keys", len(values))
	return nil
}

// RecordNewValue merges key=value into <recordRoot>/<path>/recorded.properties.
// The file is rewritten sorted through a temporary file and rename.
func (d *Dir) RecordNewValue(ctx context.Context, path, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return fmt.Errorf("record %s: %w", path, err)
	}
	dir, err := recordDir(d.recordRoot, path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file := filepath.Join(dir, RecordedFile)
	values, err := readFile(file)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("record %s: %w", key, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	if err := writeFile(file, values); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	d.logger.Debug("expected: recorded value", "key", key, "file", file)
	return nil
}

// recordDir joins path below root and rejects paths escaping it.
func recordDir(root, path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("record path %q escapes the record root", path)
	}
	return filepath.Join(root, clean), nil
}

func loadDir(root, skip string, logger *slog.Logger) (map[string]string, error) {
	values := make(map[string]string)
	sources := make(map[string]string)

	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if e.IsDir() {
			if p != root && filepath.Clean(p) == filepath.Clean(skip) {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != ".properties" {
			return nil
		}
		file, err := readFile(p)
		if err != nil {
			return err
		}
		for k, v := range file {
			if prev, dup := sources[k]; dup {
				logger.Warn("expected: duplicate key", "key", k, "first", prev, "override", p)
			}
			sources[k] = p
			values[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load expected values from %s: %w", root, err)
	}
	return values, nil
}

func readFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

func writeFile(path string, values map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, values); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Snapshot returns a copy of the loaded values.
func (d *Dir) Snapshot() map[string]string {
	m := d.values.Load()
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(*m)
}
