package repo

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/cyplat/gandalf/internal/domain"
)

const userColumns = `user_id, external_id, username, email, password_hash, password_updated_at,
	password_reset_required, failed_login_attempts, last_failed_attempt, account_locked,
	account_locked_until, account_enabled, email_verified, email_verification_token,
	email_verification_sent_at, created_at, updated_at, last_login_at, requires_mfa,
	auth_provider, user_state, host(last_login_ip), last_user_agent, data_region,
	deletion_scheduled_at`

// UserPG is the Postgres-backed domain.UserRepository.
type UserPG struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

func NewUserPG(pool *pgxpool.Pool, acquireTimeout time.Duration) *UserPG {
	if acquireTimeout <= 0 {
		acquireTimeout = 3 * time.Second
	}
	return &UserPG{pool: pool, acquireTimeout: acquireTimeout}
}

// acquire bounds the wait for a pooled connection. A deadline that fires while
// the caller's own context is still live is reported as ErrPoolTimeout.
func (r *UserPG) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()
	conn, err := r.pool.Acquire(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrPoolTimeout
		}
		return nil, classifyPG(err)
	}
	return conn, nil
}

func (r *UserPG) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.user.find_by_id", tracer.Tag("user_id", id.String()))
	defer sp.Finish()

	conn, err := r.acquire(ctx)
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	defer conn.Release()

	u, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM auth.users WHERE user_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (r *UserPG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.user.exists_by_email")
	defer sp.Finish()

	conn, err := r.acquire(ctx)
	if err != nil {
		sp.SetTag("error", err)
		return false, err
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM auth.users WHERE email = $1 AND user_state <> 'deleted')`,
		domain.NormalizeEmail(email),
	).Scan(&exists)
	if err != nil {
		sp.SetTag("error", err)
		return false, classifyPG(err)
	}
	return exists, nil
}

func (r *UserPG) Create(ctx context.Context, u domain.User) (domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.user.insert", tracer.Tag("user_id", u.ID.String()))
	defer sp.Finish()

	conn, err := r.acquire(ctx)
	if err != nil {
		sp.SetTag("error", err)
		return domain.User{}, err
	}
	defer conn.Release()

	var ip *string
	if u.LastLoginIP != nil {
		s := u.LastLoginIP.String()
		ip = &s
	}
	row := conn.QueryRow(ctx, `
		INSERT INTO auth.users (
			user_id, external_id, username, email, password_hash, password_updated_at,
			password_reset_required, failed_login_attempts, last_failed_attempt, account_locked,
			account_locked_until, account_enabled, email_verified, email_verification_token,
			email_verification_sent_at, created_at, updated_at, last_login_at, requires_mfa,
			auth_provider, user_state, last_login_ip, last_user_agent, data_region,
			deletion_scheduled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22::inet, $23, $24, $25
		) RETURNING `+userColumns,
		u.ID, u.ExternalID, u.Username, domain.NormalizeEmail(u.Email), u.PasswordHash, u.PasswordUpdatedAt,
		u.PasswordResetRequired, u.FailedLoginAttempts, u.LastFailedAttempt, u.AccountLocked,
		u.AccountLockedUntil, u.AccountEnabled, u.EmailVerified, u.EmailVerificationToken,
		u.EmailVerificationSentAt, u.CreatedAt, u.UpdatedAt, u.LastLoginAt, u.RequiresMFA,
		u.AuthProvider.String(), u.UserState.String(), ip, u.LastUserAgent, u.DataRegion,
		u.DeletionScheduledAt,
	)
	created, err := scanUser(row)
	if err != nil {
		sp.SetTag("error", err)
		return domain.User{}, err
	}
	return created, nil
}

func (r *UserPG) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, sentAt time.Time) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.user.set_verification_token", tracer.Tag("user_id", id.String()))
	defer sp.Finish()

	conn, err := r.acquire(ctx)
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
		UPDATE auth.users
		SET email_verification_token = $2,
		    email_verification_sent_at = $3,
		    updated_at = GREATEST(updated_at, $3)
		WHERE user_id = $1`, id, tokenHash, sentAt.UTC())
	if err != nil {
		sp.SetTag("error", err)
		return classifyPG(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserPG) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return classifyPG(r.pool.Ping(ctx))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u             domain.User
		provider, st  string
		ip            *string
		failedAttempt int32
	)
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.PasswordHash, &u.PasswordUpdatedAt,
		&u.PasswordResetRequired, &failedAttempt, &u.LastFailedAttempt, &u.AccountLocked,
		&u.AccountLockedUntil, &u.AccountEnabled, &u.EmailVerified, &u.EmailVerificationToken,
		&u.EmailVerificationSentAt, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt, &u.RequiresMFA,
		&provider, &st, &ip, &u.LastUserAgent, &u.DataRegion,
		&u.DeletionScheduledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
		return domain.User{}, classifyPG(err)
	}
	u.FailedLoginAttempts = int(failedAttempt)
	if u.AuthProvider, err = domain.ParseAuthProvider(provider); err != nil {
		return domain.User{}, err
	}
	if u.UserState, err = domain.ParseUserState(st); err != nil {
		return domain.User{}, err
	}
	if ip != nil {
		addr, perr := netip.ParseAddr(*ip)
		if perr != nil {
			return domain.User{}, fmt.Errorf("%w: last_login_ip %q", domain.ErrDataIntegrity, *ip)
		}
		u.LastLoginIP = &addr
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
