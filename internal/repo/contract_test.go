package repo

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyplat/gandalf/internal/domain"
)

// exerciseRepository runs the behaviour every backend must share.
func exerciseRepository(t *testing.T, r domain.UserRepository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create returns persisted row", func(t *testing.T) {
		u := domain.NewUser("  Alice@Example.com ", "", now)
		ip := netip.MustParseAddr("203.0.113.7")
		u.LastLoginIP = &ip
		hash := "$argon2id$v=19$m=19456,t=2,p=2$c2FsdA$a2V5"
		u.PasswordHash = &hash

		got, err := r.Create(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, domain.ProviderLocal, got.AuthProvider)
		assert.Equal(t, domain.StateRegistered, got.UserState)
		assert.Equal(t, domain.DefaultDataRegion, got.DataRegion)
		assert.True(t, got.AccountEnabled)
		require.NotNil(t, got.LastLoginIP)
		assert.Equal(t, ip, *got.LastLoginIP)

		found, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, got.Email, found.Email)
		assert.Equal(t, hash, *found.PasswordHash)
		assert.True(t, found.CreatedAt.Equal(now))

		exists, err := r.ExistsByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("missing id is nil without error", func(t *testing.T) {
		u, err := r.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("duplicate email is a unique violation", func(t *testing.T) {
		_, err := r.Create(ctx, domain.NewUser("dup@example.com", "", now))
		require.NoError(t, err)

		_, err = r.Create(ctx, domain.NewUser("DUP@example.com", "", now))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUniqueViolation))
		var uv *domain.UniqueViolationError
		require.True(t, errors.As(err, &uv))
		assert.Equal(t, "email", uv.Field)
	})

	t.Run("deleted user frees email", func(t *testing.T) {
		gone := domain.NewUser("reuse@example.com", "", now)
		gone.UserState = domain.StateDeleted
		_, err := r.Create(ctx, gone)
		require.NoError(t, err)

		exists, err := r.ExistsByEmail(ctx, "reuse@example.com")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = r.Create(ctx, domain.NewUser("Reuse@example.com", "", now))
		require.NoError(t, err)

		exists, err = r.ExistsByEmail(ctx, "reuse@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = r.Create(ctx, domain.NewUser("reuse@example.com", "", now))
		assert.True(t, errors.Is(err, domain.ErrUniqueViolation))
	})

	t.Run("verification token advances updated_at", func(t *testing.T) {
		u, err := r.Create(ctx, domain.NewUser("verify@example.com", "eu-west", now))
		require.NoError(t, err)

		sent := now.Add(time.Minute)
		require.NoError(t, r.SetVerificationToken(ctx, u.ID, "hash-value", sent))

		got, err := r.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.EmailVerificationToken)
		assert.Equal(t, "hash-value", *got.EmailVerificationToken)
		require.NotNil(t, got.EmailVerificationSentAt)
		assert.True(t, got.EmailVerificationSentAt.Equal(sent))
		assert.True(t, got.UpdatedAt.Equal(sent))
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
		assert.Equal(t, "eu-west", got.DataRegion)

		err = r.SetVerificationToken(ctx, uuid.New(), "x", sent)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent creates for one email", func(t *testing.T) {
		const n = 8
		var (
			wg  sync.WaitGroup
			ok  atomic.Int32
			dup atomic.Int32
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Create(ctx, domain.NewUser("race@example.com", "", now))
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, domain.ErrUniqueViolation):
					dup.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, ok.Load())
		assert.EqualValues(t, n-1, dup.Load())
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, r.Ping(ctx))
	})
}
