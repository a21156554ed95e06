package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyplat/gandalf/internal/domain"
)

// UserMemory keeps users in process memory. Uniqueness is checked and the row
// inserted under a single lock, so it gives the same guarantee as the index
// in the SQL schema.
type UserMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]domain.User
	byEmail map[string]uuid.UUID // non-deleted users only
}

func NewUserMemory() *UserMemory {
	return &UserMemory{
		byID:    make(map[uuid.UUID]domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *UserMemory) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *UserMemory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEmail[domain.NormalizeEmail(email)]
	return ok, nil
}

func (m *UserMemory) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	u.Email = domain.NormalizeEmail(u.Email)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; ok {
		return domain.User{}, &domain.UniqueViolationError{Field: "user_id"}
	}
	if u.UserState != domain.StateDeleted {
		if _, ok := m.byEmail[u.Email]; ok {
			return domain.User{}, &domain.UniqueViolationError{Field: "email"}
		}
		m.byEmail[u.Email] = u.ID
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *UserMemory) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	sentAt = sentAt.UTC()
	u.EmailVerificationToken = &tokenHash
	u.EmailVerificationSentAt = &sentAt
	if sentAt.After(u.UpdatedAt) {
		u.UpdatedAt = sentAt
	}
	m.byID[id] = u
	return nil
}

func (m *UserMemory) Ping(context.Context) error { return nil }

// Len returns the number of stored users, deleted ones included.
func (m *UserMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
