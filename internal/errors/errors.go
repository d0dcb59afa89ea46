// Package errors defines the API error envelope and the translation
// from service errors to HTTP responses.
package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the JSON error envelope returned by every endpoint.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"error"`
	TraceID    string `json:"trace_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// Predefined error types for common scenarios
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrUnauthorized   = New(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRateLimited    = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// BadRequest creates a 400 error with the given message.
func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, "INVALID_REQUEST", message)
}

// NotFound creates a 404 error for the named resource.
func NotFound(resource string) *APIError {
	return New(http.StatusNotFound, "NOT_FOUND", resource+" not found")
}

// Unauthorized creates a 401 error with the given message.
func Unauthorized(message string) *APIError {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// PayloadTooLarge creates a 413 error for oversized uploads.
func PayloadTooLarge(message string) *APIError {
	return New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", message)
}
