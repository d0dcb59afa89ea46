package domain

import "fmt"

// ValidationError marks client input that failed validation: a missing
// multipart field, a bad file extension, or missing required columns.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a resource that is absent or not owned by the
// caller. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ConflictError marks a uniqueness violation, e.g. a duplicate username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
