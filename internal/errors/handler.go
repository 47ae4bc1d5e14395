package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	// Context errors first
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	// Domain sentinel errors from the report pipeline
	switch {
	case errors.Is(err, ErrInvalidWindow):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidWindow,
			"Invalid Report Window",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrInvalidTimestamp):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidTimestamp,
			"Invalid Timestamp",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrTemplateNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeTemplateNotFound,
			"Template Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrArtifactNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeArtifactNotFound,
			"Report Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrMissingParameters):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeMissingParameters,
			"Template Has No Parameters",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrNoSourceData):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeNoSourceData,
			"No Source Data",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, ErrRenderFailure):
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeRenderFailure,
			"Report Render Failed",
			"The report could not be rendered",
			r.URL.Path,
		)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED":
		problemType = TypeValidation
	case "NOT_FOUND", "TEMPLATE_NOT_FOUND", "REPORT_NOT_FOUND":
		problemType = TypeNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	case "INVALID_REQUEST":
		problemType = TypeValidation
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		fmt.Sprintf("An unexpected error occurred: %v", recovered),
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	render.Render(w, r, problem)
}

// getStackTrace returns a trimmed stack trace for development responses.
func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
