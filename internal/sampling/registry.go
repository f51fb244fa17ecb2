package sampling

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Args holds constructor arguments for a registered sampler kind. Values come
// from decoded YAML or from code, so accessors accept the usual numeric and
// string encodings.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", NewConfigError(ErrCodeMissingArg, "missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", NewConfigError(ErrCodeInvalidArg, "argument %q: expected string, got %T", key, v)
	}
	return s, nil
}

// StringOr returns an optional string argument.
func (a Args) StringOr(key, def string) (string, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	return a.String(key)
}

// Int returns an optional integer argument.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, NewConfigError(ErrCodeInvalidArg, "argument %q: %v is not an integer", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, &ConfigError{Code: ErrCodeInvalidArg, Message: fmt.Sprintf("argument %q", key), Err: err}
		}
		return i, nil
	default:
		return 0, NewConfigError(ErrCodeInvalidArg, "argument %q: expected integer, got %T", key, v)
	}
}

// Bool returns an optional boolean argument.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, &ConfigError{Code: ErrCodeInvalidArg, Message: fmt.Sprintf("argument %q", key), Err: err}
		}
		return parsed, nil
	default:
		return false, NewConfigError(ErrCodeInvalidArg, "argument %q: expected bool, got %T", key, v)
	}
}

// Duration returns an optional duration argument. Strings are parsed with
// time.ParseDuration; bare numbers are milliseconds.
func (a Args) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, &ConfigError{Code: ErrCodeInvalidArg, Message: fmt.Sprintf("argument %q", key), Err: err}
		}
		return d, nil
	}
	ms, err := a.Int(key, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Constructor builds a sampler from arguments.
type Constructor[T any] func(args Args) (Sampler[T], error)

// Registry maps sampler kind identifiers to typed constructors.
// It is safe for concurrent use; registration normally happens at startup.
type Registry[T any] struct {
	mu    sync.RWMutex
	kinds map[string]Constructor[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{kinds: make(map[string]Constructor[T])}
}

// Register adds a constructor for kind. Registering the same kind twice is a
// configuration error.
func (r *Registry[T]) Register(kind string, ctor Constructor[T]) error {
	if ctor == nil {
		return NewConfigError(ErrCodeNilDependency, "constructor for kind %q is nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		return NewConfigError(ErrCodeInvalidArg, "sampler kind %q already registered", kind)
	}
	r.kinds[kind] = ctor
	return nil
}

// New builds a sampler of the given kind.
func (r *Registry[T]) New(kind string, args Args) (Sampler[T], error) {
	r.mu.RLock()
	ctor, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{
			Code:    ErrCodeUnknownKind,
			Message: fmt.Sprintf("kind %q (known: %v)", kind, r.Kinds()),
			Err:     ErrUnknownKind,
		}
	}
	if args == nil {
		args = Args{}
	}
	s, err := ctor(args)
	if err != nil {
		return nil, fmt.Errorf("build %s sampler: %w", kind, err)
	}
	return s, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry[T]) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
