package model

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the validate tags of an entity value or pointer.
func Validate(v any) error {
	return validatorInstance().Struct(v)
}

// ValidateVar checks a single value against a validator tag string.
func ValidateVar(v any, tag string) error {
	return validatorInstance().Var(v, tag)
}
