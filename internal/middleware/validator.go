package middleware

import (
    "github.com/go-playground/validator/v10"
)

// RequestValidator adapts go-playground/validator to echo.Validator so
// handlers can call c.Validate on bound request bodies.
type RequestValidator struct {
    v *validator.Validate
}

// NewValidator returns a validator that reports the first failing field.
func NewValidator() *RequestValidator {
    return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
    return rv.v.Struct(i)
}
