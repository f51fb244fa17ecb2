package sampling

import (
	"errors"
	"fmt"
)

var (
	// ErrAbsent reports that the source was reachable but held no value.
	ErrAbsent = errors.New("no value found")

	// ErrUnavailable reports that the source could not be reached.
	ErrUnavailable = errors.New("source unavailable")

	// ErrUnknownKind is wrapped by ConfigError when a registry has no constructor
	// for the requested kind.
	ErrUnknownKind = errors.New("unknown sampler kind")
)

// SourceError is a recoverable acquisition failure raised by a live value source.
type SourceError struct {
	// Op names the failing operation (e.g. "find", "current").
	Op string

	// Selector identifies what was being looked up, if anything.
	Selector string

	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Selector, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMissingArg indicates a required constructor argument was not supplied.
	ErrCodeMissingArg ConfigErrorCode = "MISSING_ARG"

	// ErrCodeInvalidArg indicates an argument had the wrong type or an invalid value.
	ErrCodeInvalidArg ConfigErrorCode = "INVALID_ARG"

	// ErrCodeUnknownKind indicates no constructor is registered for a kind.
	ErrCodeUnknownKind ConfigErrorCode = "UNKNOWN_KIND"

	// ErrCodeNilDependency indicates a required collaborator was nil.
	ErrCodeNilDependency ConfigErrorCode = "NIL_DEPENDENCY"
)

// ConfigError is a programming or configuration error. Unlike SourceError it
// is never degraded to a null value; it is fatal to the current test.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError.
func NewConfigError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsRecoverable reports whether err is an acquisition failure that may be
// degraded to a null value. Configuration errors are never recoverable, even
// when they wrap a source error.
func IsRecoverable(err error) bool {
	if err == nil || IsConfigError(err) {
		return false
	}
	var se *SourceError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, ErrAbsent) || errors.Is(err, ErrUnavailable)
}
