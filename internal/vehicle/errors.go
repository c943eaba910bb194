package vehicle

import (
	"errors"
	"fmt"
)

// Sentinel errors for query validation failures.
var (
	ErrRequired          = errors.New("field is required")
	ErrInvalidDrivetrain = errors.New("unsupported drivetrain")
)

// ValidationError reports a user-entered field that cannot form a Spec.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Wrapped)
	}
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Field, e.Wrapped, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Kind tags the error for callers that report failures by category.
func (e *ValidationError) Kind() string { return "validation" }

func newValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
