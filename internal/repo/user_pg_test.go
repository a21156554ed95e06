package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	ctx := context.Background()
	pgC, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gandalf"),
		postgres.WithUsername("gandalf"),
		postgres.WithPassword("gandalf"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	return dsn
}

func TestUserPG_Contract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := Connect(ctx, dsn, PGOptions{MaxConns: 5, AcquireTimeout: 3 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))
	// second run is a no-op
	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))

	exerciseRepository(t, NewUserPG(pool, 3*time.Second))
}

func TestUserPG_DeletedUserFreesEmail(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := Connect(ctx, dsn, PGOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))

	r := NewUserPG(pool, time.Second)
	gone := domain.NewUser("carol@example.com", "", time.Now())
	gone.UserState = domain.StateDeleted
	_, err = r.Create(ctx, gone)
	require.NoError(t, err)

	exists, err := r.ExistsByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = r.Create(ctx, domain.NewUser("carol@example.com", "", time.Now()))
	require.NoError(t, err)
}

func TestUserPG_PoolTimeout(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := Connect(ctx, dsn, PGOptions{MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	r := NewUserPG(pool, 100*time.Millisecond)
	_, err = r.FindByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPoolTimeout))
	assert.True(t, errors.Is(err, domain.ErrConnection))
}

func TestUserPG_CorruptEnumIsIntegrityError(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := Connect(ctx, dsn, PGOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool, zap.NewNop()))

	r := NewUserPG(pool, time.Second)
	u, err := r.Create(ctx, domain.NewUser("dave@example.com", "", time.Now()))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `ALTER TABLE auth.users DROP CONSTRAINT users_user_state_check`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE auth.users SET user_state = 'zombie' WHERE user_id = $1`, u.ID)
	require.NoError(t, err)

	_, err = r.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
	assert.ErrorIs(t, err, domain.ErrInternal)
}
