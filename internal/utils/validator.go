// internal/utils/validator.go
package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("notblank", validators.NotBlank)
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("school_status", validateSchoolStatus)
}

// Validate runs struct validation and reports failures as a domain
// ValidationError.
func Validate(s interface{}, message string) error {
	if err := validate.Struct(s); err != nil {
		return apperr.FromValidator(err, message)
	}
	return nil
}

func validateUserRole(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	return role == "" || models.UserRole(role).Valid()
}

func validateSchoolStatus(fl validator.FieldLevel) bool {
	return models.SchoolStatus(fl.Field().String()).Valid()
}

func GetValidationErrors(err error) []apperr.FieldViolation {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperr.Violations(verrs)
	}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
