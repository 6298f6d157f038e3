package anchor

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid setup configuration: bad thresholds, an
// empty accepted-tag set, zero target K, or an inconsistent family set.
// Configuration errors are fatal at setup and are never silently
// defaulted away.
type ConfigError struct {
	// Field names the offending configuration field.
	Field string

	// Message is a human-readable description.
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid config: %s", e.Message)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// MismatchError reports that pattern keys computed under one AnchorSet
// were compared against statistics built under a different AnchorSet.
// Comparison must halt: mixed-fingerprint similarity or emergence results
// are silently wrong, which is worse than failing.
type MismatchError struct {
	// Want is the fingerprint the caller's AnchorSet carries.
	Want string

	// Got is the fingerprint found on the other side (store, aggregate).
	Got string

	// Context describes where the mismatch was detected.
	Context string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("anchor set mismatch in %s: want fingerprint %s, got %s", e.Context, e.Want, e.Got)
}

// NewMismatchError creates a MismatchError detected in the given context.
func NewMismatchError(context, want, got string) *MismatchError {
	return &MismatchError{Want: want, Got: got, Context: context}
}

// IsMismatchError returns true if the error is a MismatchError.
// Uses errors.As to handle wrapped errors.
func IsMismatchError(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}
