package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository is the persistence contract for users. The store is the sole
// writer of persisted state and must enforce email uniqueness itself; callers
// treat ExistsByEmail as an optimisation only.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u User) (User, error)
	SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, sentAt time.Time) error
	Ping(ctx context.Context) error
}
