package model

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
			val, ok := fl.Field().Interface().(float64)
			if !ok {
				return false
			}
			return val >= -90 && val <= 90
		})
		_ = v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
			val, ok := fl.Field().Interface().(float64)
			if !ok {
				return false
			}
			return val >= -180 && val <= 180
		})
		validate = v
	})
	return validate
}

// Validate checks any struct carrying validate tags and converts failures to *ValidationError.
func Validate(s any) error {
	return validateStruct(s)
}

func validateStruct(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return &ValidationError{Field: strings.ToLower(field), Reason: describeTag(fe)}
	}
	return &ValidationError{Reason: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "lt":
		return "must be below " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "latitude", "longitude":
		return "is not a valid " + fe.Tag()
	}
	return "failed " + fe.Tag()
}
