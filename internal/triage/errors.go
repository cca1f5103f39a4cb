package triage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service's failure taxonomy. Callers match with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrValidation rejects a request before any state changes.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks lookups of unknown or unrelated identifiers.
	ErrNotFound = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
