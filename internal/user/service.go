package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/security"
)

// Service is the thin façade over the user repository used by handlers and
// registration strategies.
type Service struct {
	repo   domain.UserRepository
	region string
	now    func() time.Time
}

func NewService(repo domain.UserRepository, defaultRegion string) *Service {
	if defaultRegion == "" {
		defaultRegion = domain.DefaultDataRegion
	}
	return &Service{repo: repo, region: defaultRegion, now: time.Now}
}

// GetUser returns nil, nil when no user has the id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// CreateDefaultUser builds an unsaved user in the registered state.
func (s *Service) CreateDefaultUser(email string) domain.User {
	return domain.NewUser(email, s.region, s.now())
}

func (s *Service) UserExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *Service) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	return s.repo.Create(ctx, u)
}

// IssueVerificationToken generates a token, stores its hash on the user row
// and returns the plaintext for delivery.
func (s *Service) IssueVerificationToken(ctx context.Context, id uuid.UUID) (string, error) {
	token, err := security.NewVerificationToken()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.repo.SetVerificationToken(ctx, id, security.HashToken(token), s.now()); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}
