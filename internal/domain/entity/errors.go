package entity

import (
	"errors"
	"fmt"
)

// Domain errors shared by the backend services, the HTTP adapter and the client
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

// invalidf wraps ErrValidation with a formatted message
func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Invalidf is the exported form of invalidf for other packages
func Invalidf(format string, args ...interface{}) error {
	return invalidf(format, args...)
}
