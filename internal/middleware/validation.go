package middleware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "fennixdash/internal/errors"
	"fennixdash/pkg/contracts/domain"
)

// Validator decodes and validates request payloads using struct tags.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a validator with the dashboard's custom tags:
// sheetname and viewname.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("sheetname", isSheetName)
	_ = v.RegisterValidation("viewname", isViewName)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger.With(slog.String("component", "validation")),
	}
}

// ValidateStruct validates a struct and returns an *APIError listing every
// failing field.
func (m *Validator) ValidateStruct(v any) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// DecodeJSON reads a JSON body into v and validates it.
func (m *Validator) DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apierrors.ErrValidation("body", "request body is required")
	}
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size", map[string]any{"max_size": tooLarge.Limit})
		case errors.Is(err, io.EOF):
			return apierrors.ErrValidation("body", "request body is required")
		default:
			m.logger.DebugContext(r.Context(), "invalid JSON body", slog.String("error", err.Error()))
			return apierrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON")
		}
	}
	return m.ValidateStruct(v)
}

// ContentTypeValidator ensures requests with a body declare an accepted
// content type.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := strings.ToLower(r.Header.Get("Content-Type"))
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]any{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", field, param)
	case "sheetname":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(domain.SheetNameStrings(), ", "))
	case "viewname":
		return fmt.Sprintf("%s must be one of: overview, sales, campaigns, cards", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isSheetName(fl validator.FieldLevel) bool {
	return domain.SheetName(strings.TrimSpace(fl.Field().String())).Valid()
}

func isViewName(fl validator.FieldLevel) bool {
	return domain.ViewName(fl.Field().String()).Valid()
}
