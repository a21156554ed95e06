package domain

import (
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultDataRegion = "us-east"

type User struct {
	ID         uuid.UUID
	ExternalID *string // federated provider subject
	Username   *string
	Email      string

	PasswordHash          *string // argon2id PHC string
	PasswordUpdatedAt     *time.Time
	PasswordResetRequired bool

	FailedLoginAttempts int
	LastFailedAttempt   *time.Time
	AccountLocked       bool
	AccountLockedUntil  *time.Time
	AccountEnabled      bool

	EmailVerified           bool
	EmailVerificationToken  *string // sha256 of the issued token, never the token itself
	EmailVerificationSentAt *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time

	RequiresMFA  bool
	AuthProvider AuthProvider
	UserState    UserState

	LastLoginIP         *netip.Addr
	LastUserAgent       *string
	DataRegion          string
	DeletionScheduledAt *time.Time
}

// NewUser returns a user in its initial lifecycle state.
func NewUser(email, region string, now time.Time) User {
	if region == "" {
		region = DefaultDataRegion
	}
	now = now.UTC()
	return User{
		ID:             uuid.New(),
		Email:          NormalizeEmail(email),
		AccountEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
		AuthProvider:   ProviderLocal,
		UserState:      StateRegistered,
		DataRegion:     region,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegistrationInput struct {
	Email    string
	Password *string
}

type RegisteredUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	AuthProvider string    `json:"auth_provider"`
}

// VerificationEmail is what the notification path needs to deliver a verification link.
type VerificationEmail struct {
	UserID uuid.UUID
	Email  string
	Token  string
}
