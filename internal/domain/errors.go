package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidReading is matched by every InputError.
var ErrInvalidReading = errors.New("invalid reading")

// ErrAbstained is returned by a scorer that declines to produce a verdict,
// usually because it has not seen enough history yet.
var ErrAbstained = errors.New("model abstained")

// InputError describes a malformed Reading rejected at the ingestion boundary.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid reading: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidReading }

func inputErrorf(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError is fatal at startup: the engine must not run with it.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Setting, e.Reason)
}

// ConfigErrorf builds a ConfigurationError for the named setting.
func ConfigErrorf(setting, format string, args ...any) error {
	return &ConfigurationError{Setting: setting, Reason: fmt.Sprintf(format, args...)}
}
