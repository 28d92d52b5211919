package handlers

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/pkg/errors"
)

const maxUnitLength = 32

// RequestValidator validates request DTOs and reports failures by JSON field name
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator with the pantry rules registered
func NewRequestValidator() *RequestValidator {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("unit", validateUnit)
	_ = validate.RegisterValidation("ingredient", validateIngredient)

	return &RequestValidator{validate: validate}
}

// Validate returns a validation AppError describing every failed field
func (v *RequestValidator) Validate(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewBadRequestError(err.Error())
	}

	details := make([]errors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, errors.ValidationError{
			Field:   trimRoot(fe.Namespace()),
			Value:   fe.Value(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return errors.NewValidationErrors(details)
}

// trimRoot drops the struct name so "cookRequest.ingredients[0].amount"
// is reported as "ingredients[0].amount"
func trimRoot(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must contain at most %s item(s)", fe.Field(), fe.Param())
	case "unit":
		return fmt.Sprintf("%s is not a valid unit", fe.Field())
	case "ingredient":
		return fmt.Sprintf("%s is not a valid ingredient name", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// validateUnit accepts units that still name something once normalized
func validateUnit(fl validator.FieldLevel) bool {
	unit := pantry.NormalizeUnit(fl.Field().String())
	return unit != "" && len(unit) <= maxUnitLength
}

// validateIngredient rejects blank names and control characters
func validateIngredient(fl validator.FieldLevel) bool {
	name := pantry.CanonicalName(fl.Field().String())
	if name == "" || len(name) > 255 {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
