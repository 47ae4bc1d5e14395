package errors

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "not found",
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "validation with field",
			err:        ErrValidation("from_date", "must be before to_date"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "named resource not found",
			err:        NotFoundError("template"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrorToProblem_DomainSentinels(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "invalid window",
			err:        ErrInvalidWindow,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidWindow,
		},
		{
			name:       "wrapped invalid window",
			err:        fmt.Errorf("generate report: %w", ErrInvalidWindow),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidWindow,
		},
		{
			name:       "invalid timestamp",
			err:        fmt.Errorf("parse from_date: %w", ErrInvalidTimestamp),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidTimestamp,
		},
		{
			name:       "template not found",
			err:        ErrTemplateNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeTemplateNotFound,
		},
		{
			name:       "stored report not found",
			err:        fmt.Errorf("stamp review: %w", ErrArtifactNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeArtifactNotFound,
		},
		{
			name:       "missing parameters",
			err:        ErrMissingParameters,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeMissingParameters,
		},
		{
			name:       "render failure",
			err:        fmt.Errorf("compose page 3: %w", ErrRenderFailure),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeRenderFailure,
		},
		{
			name:       "unknown error falls through to internal",
			err:        fmt.Errorf("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
			problem := handler.ErrorToProblem(tt.err, r)

			require.NotNil(t, problem)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/reports", problem.Instance)
		})
	}
}

func TestErrorToProblem_APIError(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	r := httptest.NewRequest(http.MethodPost, "/api/reports/generate", nil)

	problem := handler.ErrorToProblem(ErrValidation("template_id", "required"), r)

	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeValidation, problem.Type)
	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
	assert.NotNil(t, problem.Extensions["details"])
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "report 7 not found", "/api/reports/7").
		WithExtension("error_code", "NOT_FOUND")

	data, err := problem.MarshalJSON()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"status":404`)
	assert.Contains(t, string(data), `"type":"/errors/not-found"`)
	assert.Contains(t, string(data), `"error_code":"NOT_FOUND"`)
}

func TestHandleError_WritesProblem(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	r := httptest.NewRequest(http.MethodGet, "/api/reports/99", nil)
	w := httptest.NewRecorder()

	handler.HandleError(w, r, ErrArtifactNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "/errors/report/not-found")
}
