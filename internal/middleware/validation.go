package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "emspulse/internal/errors"
)

// ValidationMiddleware validates JSON request bodies against struct tags.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

var (
	epochMillisPattern = regexp.MustCompile(`^\d{1,15}$`)
	seriesNamePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// NewValidationMiddleware creates the middleware with the domain's custom
// validators registered.
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()

	v.RegisterValidation("epochmillis", isEpochMillis)
	v.RegisterValidation("seriesname", isSeriesName)

	// Use JSON tag names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  10 * 1024 * 1024,
	}
}

// Validator exposes the underlying validator for handler-level checks.
func (m *ValidationMiddleware) Validator() *validator.Validate {
	return m.validator
}

// DecodeAndValidate reads the request body into dst and validates it. The
// body is restored so downstream code may re-read it.
func (m *ValidationMiddleware) DecodeAndValidate(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) == 0 {
		return fmt.Errorf("empty request body: %w", apierrors.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request body: %w", apierrors.ErrInvalidRequest)
	}

	if err := m.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		details := make(map[string]any)
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				details[fe.Field()] = validationMessage(fe)
			}
		}
		return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
			"request validation failed", details)
	}
	return nil
}

// RenderError writes a validation failure as an RFC 7807 problem.
func (m *ValidationMiddleware) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	m.errorHandler.HandleError(w, r, err)
}

// RespondJSON writes a JSON response via chi's render package.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func isEpochMillis(fl validator.FieldLevel) bool {
	return epochMillisPattern.MatchString(fl.Field().String())
}

func isSeriesName(fl validator.FieldLevel) bool {
	return seriesNamePattern.MatchString(fl.Field().String())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "epochmillis":
		return "must be a unix epoch timestamp in milliseconds"
	case "seriesname":
		return "must start with a letter and contain only letters, digits and underscores"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation rule %q", fe.Tag())
	}
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
