package auth

import (
	"context"

	"github.com/cyplat/gandalf/internal/domain"
)

// Method is the registry key of an authentication method.
type Method string

const (
	MethodEmailPassword Method = "email_password"
	MethodGoogle        Method = "google"
	MethodFacebook      Method = "facebook"
)

// Strategy registers a user through one authentication method.
type Strategy interface {
	Register(ctx context.Context, in domain.RegistrationInput) (domain.RegisteredUser, error)
}

// Notifier delivers the verification email out of band.
type Notifier interface {
	SendVerification(ctx context.Context, msg domain.VerificationEmail) error
}
