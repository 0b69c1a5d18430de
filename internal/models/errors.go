package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the caller presented no usable credential.
	ErrAuthentication = errors.New("authentication required")
	// ErrAuthorization means the caller is known but may not touch the resource.
	ErrAuthorization = errors.New("access denied")
	// ErrNotFound covers both missing records and records owned by another tenant.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
