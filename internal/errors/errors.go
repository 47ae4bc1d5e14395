package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Domain sentinel errors for the report pipeline. Handlers map these onto
// RFC 7807 responses; services wrap them with fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidWindow is returned when windowStart is after windowEnd.
	ErrInvalidWindow = errors.New("invalid window: start after end")

	// ErrNoSourceData signals that no configured series produced rows in the
	// window. It is non-fatal: callers degrade to an empty report.
	ErrNoSourceData = errors.New("no source data in window")

	// ErrTemplateNotFound is returned for an unknown template id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrMissingParameters is returned for a template with no parameter specs.
	ErrMissingParameters = errors.New("template has no parameters")

	// ErrArtifactNotFound is returned when stamping or viewing a stored
	// report that does not exist.
	ErrArtifactNotFound = errors.New("stored report not found")

	// ErrInvalidTimestamp is returned for a malformed numeric-string time
	// value from an external caller.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrRenderFailure wraps any failure during page composition. Fatal to
	// the render attempt; no partial artifact is persisted.
	ErrRenderFailure = errors.New("render failure")
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
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

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NotFoundError creates a not found error naming the resource
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}
