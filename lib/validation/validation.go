package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	result := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, so that clients can map errors to their form fields.
	result.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return result
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a request body does not pass validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	var parts []string
	for _, field := range e.Fields {
		parts = append(parts, field.Field+": "+field.Message)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *Error) StatusCode() int {
	return http.StatusBadRequest
}

func (e *Error) ResponseBody() any {
	return struct {
		Message    string       `json:"message"`
		Error      []FieldError `json:"error"`
		StatusCode int          `json:"statusCode"`
	}{
		Message:    "Validation failed",
		Error:      e.Fields,
		StatusCode: http.StatusBadRequest,
	}
}

// Struct validates the given struct using its `validate` tags.
func Struct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	result := &Error{}
	for _, fieldErr := range validationErrors {
		result.Fields = append(result.Fields, FieldError{
			Field:   fieldErr.Field(),
			Message: message(fieldErr),
		})
	}
	return result
}

func message(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "email":
		return fieldErr.Field() + " must be an email"
	case "oneof":
		return fmt.Sprintf("%s must be one of the following values: %s", fieldErr.Field(), strings.ReplaceAll(fieldErr.Param(), " ", ", "))
	case "datetime":
		return fieldErr.Field() + " must be a valid date (YYYY-MM-DD)"
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fieldErr.Field(), fieldErr.Tag())
	}
}
