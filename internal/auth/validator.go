package auth

import (
	"github.com/go-playground/validator/v10"
)

type EmailValidator interface {
	ValidEmail(email string) bool
}

type tagValidator struct {
	v *validator.Validate
}

// NewEmailValidator checks addresses with the validator "email" tag
// (RFC 5322 address syntax, at most 254 bytes).
func NewEmailValidator() EmailValidator {
	return tagValidator{v: validator.New()}
}

func (t tagValidator) ValidEmail(email string) bool {
	return t.v.Var(email, "required,email,max=254") == nil
}
