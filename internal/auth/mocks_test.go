package auth_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cyplat/gandalf/internal/domain"
)

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}
func (m *MockUserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	args := m.Called(ctx, u)
	if fn, ok := args.Get(0).(func(context.Context, domain.User) domain.User); ok {
		return fn(ctx, u), args.Error(1)
	}
	return args.Get(0).(domain.User), args.Error(1)
}
func (m *MockUserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, sentAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, sentAt)
	return args.Error(0)
}
func (m *MockUserRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.VerificationEmail
	err  error
}

func (n *recordingNotifier) SendVerification(_ context.Context, msg domain.VerificationEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) messages() []domain.VerificationEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.VerificationEmail(nil), n.sent...)
}

type failingHasher struct{ onHash func() }

func (f failingHasher) Hash(string) (string, error) {
	if f.onHash != nil {
		f.onHash()
		return "$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2U", nil
	}
	return "", errors.New("rng exhausted")
}
func (failingHasher) Verify(string, string) bool { return false }
