// internal/apperr/validation.go
package apperr

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidator converts validator output into a ValidationError. Other
// errors are wrapped as a plain validation failure.
func FromValidator(err error, message string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: message + ": " + err.Error()}
	}

	return &ValidationError{Message: message, Fields: Violations(verrs)}
}

func Violations(verrs validator.ValidationErrors) []FieldViolation {
	out := make([]FieldViolation, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldViolation{
			Field:   strings.ToLower(e.Field()),
			Tag:     e.Tag(),
			Message: violationMessage(e),
		})
	}
	return out
}

func violationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "notblank":
		return e.Field() + " must not be blank"
	default:
		return e.Field() + " is invalid"
	}
}
