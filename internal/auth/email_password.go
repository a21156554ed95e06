package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/log"
	"github.com/cyplat/gandalf/internal/metrics"
	"github.com/cyplat/gandalf/internal/security"
)

const maxPasswordBytes = 1024

// UserService is the slice of user.Service the strategy needs.
type UserService interface {
	UserExists(ctx context.Context, email string) (bool, error)
	CreateDefaultUser(email string) domain.User
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	IssueVerificationToken(ctx context.Context, id uuid.UUID) (string, error)
}

type Options struct {
	PasswordMinLength int
	NotifyTimeout     time.Duration
}

type EmailPassword struct {
	users     UserService
	hasher    security.PasswordHasher
	validator EmailValidator
	notifier  Notifier
	log       *zap.Logger
	opts      Options

	inflight sync.WaitGroup
}

func NewEmailPassword(users UserService, hasher security.PasswordHasher, v EmailValidator, n Notifier, lg *zap.Logger, opts Options) *EmailPassword {
	if v == nil {
		v = NewEmailValidator()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &EmailPassword{
		users:     users,
		hasher:    hasher,
		validator: v,
		notifier:  n,
		log:       lg.Named("email_password"),
		opts:      opts,
	}
}

func (s *EmailPassword) Register(ctx context.Context, in domain.RegistrationInput) (domain.RegisteredUser, error) {
	lg := log.FromContext(ctx, s.log)

	email := domain.NormalizeEmail(in.Email)
	if !s.validator.ValidEmail(email) {
		metrics.Registrations.WithLabelValues("invalid_email").Inc()
		return domain.RegisteredUser{}, domain.ErrInvalidEmail
	}
	lg = lg.With(log.Email(email))
	if err := s.checkPassword(in.Password); err != nil {
		metrics.Registrations.WithLabelValues("validation").Inc()
		return domain.RegisteredUser{}, err
	}

	exists, err := s.users.UserExists(ctx, email)
	if err != nil {
		lg.Error("existence check failed", zap.Error(err))
		metrics.Registrations.WithLabelValues("db_error").Inc()
		return domain.RegisteredUser{}, fmt.Errorf("%w: %w", domain.ErrDatabase, err)
	}
	if exists {
		metrics.Registrations.WithLabelValues("exists").Inc()
		return domain.RegisteredUser{}, domain.ErrUserAlreadyExists
	}

	u := s.users.CreateDefaultUser(email)
	u.AuthProvider = domain.ProviderLocal

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			lg.Error("password hashing failed", zap.Error(err))
			metrics.Registrations.WithLabelValues("hash_error").Inc()
			return domain.RegisteredUser{}, fmt.Errorf("%w: %w", domain.ErrPasswordHashing, err)
		}
		u.PasswordHash = &hash
		ts := u.CreatedAt
		u.PasswordUpdatedAt = &ts
	}

	// nothing is written if the caller gave up while we were hashing
	if err := ctx.Err(); err != nil {
		metrics.Registrations.WithLabelValues("cancelled").Inc()
		return domain.RegisteredUser{}, err
	}

	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			metrics.Registrations.WithLabelValues("exists").Inc()
			return domain.RegisteredUser{}, domain.ErrUserAlreadyExists
		}
		lg.Error("user insert failed", zap.Error(err))
		metrics.Registrations.WithLabelValues("db_error").Inc()
		return domain.RegisteredUser{}, fmt.Errorf("%w: %w", domain.ErrDatabase, err)
	}
	lg = lg.With(zap.String("user_id", created.ID.String()))
	lg.Info("user registered")
	metrics.Registrations.WithLabelValues("success").Inc()

	// The row is durable from here on; request cancellation must not undo
	// the follow-up work.
	detached := context.WithoutCancel(ctx)
	s.sendVerification(detached, lg, created)

	return domain.RegisteredUser{
		ID:           created.ID,
		Email:        created.Email,
		AuthProvider: created.AuthProvider.String(),
	}, nil
}

func (s *EmailPassword) checkPassword(pw *string) error {
	if pw == nil {
		return nil
	}
	switch {
	case utf8.RuneCountInString(*pw) < s.opts.PasswordMinLength:
		return &domain.ValidationError{Details: fmt.Sprintf("password must be at least %d characters", s.opts.PasswordMinLength)}
	case len(*pw) > maxPasswordBytes:
		return &domain.ValidationError{Details: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)}
	}
	return nil
}

// sendVerification stores the token hash synchronously and hands delivery
// to a background goroutine. Neither step can fail the registration.
func (s *EmailPassword) sendVerification(ctx context.Context, lg *zap.Logger, u domain.User) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	token, err := s.users.IssueVerificationToken(tctx, u.ID)
	cancel()
	if err != nil {
		lg.Error("verification token not stored", zap.Error(err))
		metrics.VerificationDispatch.WithLabelValues("token_error").Inc()
		return
	}
	if s.notifier == nil {
		return
	}

	msg := domain.VerificationEmail{UserID: u.ID, Email: u.Email, Token: token}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				lg.Error("verification dispatch panicked", zap.Any("panic", r))
				metrics.VerificationDispatch.WithLabelValues("failed").Inc()
			}
		}()
		nctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.SendVerification(nctx, msg); err != nil {
			lg.Warn("verification email not dispatched", zap.Error(err))
			metrics.VerificationDispatch.WithLabelValues("failed").Inc()
			return
		}
		metrics.VerificationDispatch.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until every background dispatch has finished.
func (s *EmailPassword) Wait() { s.inflight.Wait() }
