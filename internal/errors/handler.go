package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"equiviz/internal/domain"
	"equiviz/internal/services"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError translates err into the API error envelope and responds.
// Service and domain errors map to their HTTP status; anything
// unrecognized becomes a generic 500 so internals never leak.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	apiErr := h.toAPIError(err)
	apiErr.TraceID = reqID

	logFn := h.logger.WarnContext
	if apiErr.StatusCode >= 500 {
		logFn = h.logger.ErrorContext
	}
	logFn(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", apiErr.StatusCode),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	render.Render(w, r, apiErr)
}

func (h *ErrorHandler) toAPIError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(http.StatusGatewayTimeout, "TIMEOUT", "Request took too long to process")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.StatusCode, ErrorCode: apiErr.ErrorCode, Message: apiErr.Message}
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return New(http.StatusBadRequest, "VALIDATION_FAILED", validation.Message)
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return New(http.StatusNotFound, "NOT_FOUND", notFound.Error())
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		// Duplicate usernames come back as a plain 400, matching the
		// shape clients already handle for other registration failures.
		return New(http.StatusBadRequest, "CONFLICT", conflict.Message)
	}

	switch {
	case errors.Is(err, services.ErrMissingFile):
		return New(http.StatusBadRequest, "MISSING_FILE", "No file provided")
	case errors.Is(err, services.ErrInvalidFileType):
		return New(http.StatusBadRequest, "INVALID_FILE_TYPE", "File must be a CSV or XLSX")
	case errors.Is(err, services.ErrMissingCredentials):
		return New(http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required")
	case errors.Is(err, services.ErrInvalidCredentials):
		return New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, services.ErrInvalidToken):
		return New(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	}

	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
}

// HandlePanic recovers from panics with a 500 response
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	apiErr := New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	apiErr.TraceID = reqID
	render.Render(w, r, apiErr)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	apiErr := New(http.StatusNotFound, "NOT_FOUND", "The requested resource was not found")
	apiErr.TraceID = middleware.GetReqID(r.Context())
	render.Render(w, r, apiErr)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apiErr := New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method "+r.Method+" is not allowed for this endpoint")
	apiErr.TraceID = middleware.GetReqID(r.Context())
	render.Render(w, r, apiErr)
}
