package models

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "tradeguard/internal/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Decimals validate as their float value so numeric tags (gt, gte) apply.
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("shares", validShares)
	})
	return validate
}

// Validate checks the struct tags of v. The first failing field is returned
// as a *errors.ValidationError that matches kind through errors.Is.
func Validate(kind error, v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if apperrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(kind, fe.Field(), fe.Value(), describe(fe))
	}
	return apperrors.NewValidationError(kind, "", v, err.Error())
}

// validShares accepts a non-zero share count no larger than MaxQuantity
// either way.
func validShares(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n != 0 && n >= -MaxQuantity && n <= MaxQuantity
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ne":
		return fmt.Sprintf("must not be %s", fe.Param())
	case "shares":
		return fmt.Sprintf("must be non-zero and at most %d shares either way", MaxQuantity)
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
