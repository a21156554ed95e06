package repo

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/cyplat/gandalf/internal/domain"
)

const usersCollection = "users"

type userDoc struct {
	ID                      string     `bson:"_id"`
	ExternalID              *string    `bson:"external_id,omitempty"`
	Username                *string    `bson:"username,omitempty"`
	Email                   string     `bson:"email"`
	EmailActive             *string    `bson:"email_active,omitempty"`
	PasswordHash            *string    `bson:"password_hash,omitempty"`
	PasswordUpdatedAt       *time.Time `bson:"password_updated_at,omitempty"`
	PasswordResetRequired   bool       `bson:"password_reset_required"`
	FailedLoginAttempts     int        `bson:"failed_login_attempts"`
	LastFailedAttempt       *time.Time `bson:"last_failed_attempt,omitempty"`
	AccountLocked           bool       `bson:"account_locked"`
	AccountLockedUntil      *time.Time `bson:"account_locked_until,omitempty"`
	AccountEnabled          bool       `bson:"account_enabled"`
	EmailVerified           bool       `bson:"email_verified"`
	EmailVerificationToken  *string    `bson:"email_verification_token,omitempty"`
	EmailVerificationSentAt *time.Time `bson:"email_verification_sent_at,omitempty"`
	CreatedAt               time.Time  `bson:"created_at"`
	UpdatedAt               time.Time  `bson:"updated_at"`
	LastLoginAt             *time.Time `bson:"last_login_at,omitempty"`
	RequiresMFA             bool       `bson:"requires_mfa"`
	AuthProvider            string     `bson:"auth_provider"`
	UserState               string     `bson:"user_state"`
	LastLoginIP             *string    `bson:"last_login_ip,omitempty"`
	LastUserAgent           *string    `bson:"last_user_agent,omitempty"`
	DataRegion              string     `bson:"data_region"`
	DeletionScheduledAt     *time.Time `bson:"deletion_scheduled_at,omitempty"`
}

func toDoc(u domain.User) userDoc {
	d := userDoc{
		ID:                      u.ID.String(),
		ExternalID:              u.ExternalID,
		Username:                u.Username,
		Email:                   domain.NormalizeEmail(u.Email),
		PasswordHash:            u.PasswordHash,
		PasswordUpdatedAt:       u.PasswordUpdatedAt,
		PasswordResetRequired:   u.PasswordResetRequired,
		FailedLoginAttempts:     u.FailedLoginAttempts,
		LastFailedAttempt:       u.LastFailedAttempt,
		AccountLocked:           u.AccountLocked,
		AccountLockedUntil:      u.AccountLockedUntil,
		AccountEnabled:          u.AccountEnabled,
		EmailVerified:           u.EmailVerified,
		EmailVerificationToken:  u.EmailVerificationToken,
		EmailVerificationSentAt: u.EmailVerificationSentAt,
		CreatedAt:               u.CreatedAt.UTC(),
		UpdatedAt:               u.UpdatedAt.UTC(),
		LastLoginAt:             u.LastLoginAt,
		RequiresMFA:             u.RequiresMFA,
		AuthProvider:            u.AuthProvider.String(),
		UserState:               u.UserState.String(),
		LastUserAgent:           u.LastUserAgent,
		DataRegion:              u.DataRegion,
		DeletionScheduledAt:     u.DeletionScheduledAt,
	}
	// email_active is the uniqueness key; deleted users drop it and free their email.
	if u.UserState != domain.StateDeleted {
		d.EmailActive = &d.Email
	}
	if u.LastLoginIP != nil {
		s := u.LastLoginIP.String()
		d.LastLoginIP = &s
	}
	return d
}

func (d userDoc) toUser() (domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: _id %q", domain.ErrDataIntegrity, d.ID)
	}
	u := domain.User{
		ID:                      id,
		ExternalID:              d.ExternalID,
		Username:                d.Username,
		Email:                   d.Email,
		PasswordHash:            d.PasswordHash,
		PasswordUpdatedAt:       d.PasswordUpdatedAt,
		PasswordResetRequired:   d.PasswordResetRequired,
		FailedLoginAttempts:     d.FailedLoginAttempts,
		LastFailedAttempt:       d.LastFailedAttempt,
		AccountLocked:           d.AccountLocked,
		AccountLockedUntil:      d.AccountLockedUntil,
		AccountEnabled:          d.AccountEnabled,
		EmailVerified:           d.EmailVerified,
		EmailVerificationToken:  d.EmailVerificationToken,
		EmailVerificationSentAt: d.EmailVerificationSentAt,
		CreatedAt:               d.CreatedAt.UTC(),
		UpdatedAt:               d.UpdatedAt.UTC(),
		LastLoginAt:             d.LastLoginAt,
		RequiresMFA:             d.RequiresMFA,
		LastUserAgent:           d.LastUserAgent,
		DataRegion:              d.DataRegion,
		DeletionScheduledAt:     d.DeletionScheduledAt,
	}
	if u.AuthProvider, err = domain.ParseAuthProvider(d.AuthProvider); err != nil {
		return domain.User{}, err
	}
	if u.UserState, err = domain.ParseUserState(d.UserState); err != nil {
		return domain.User{}, err
	}
	if d.LastLoginIP != nil {
		addr, perr := netip.ParseAddr(*d.LastLoginIP)
		if perr != nil {
			return domain.User{}, fmt.Errorf("%w: last_login_ip %q", domain.ErrDataIntegrity, *d.LastLoginIP)
		}
		u.LastLoginIP = &addr
	}
	return u, nil
}

// UserMongo is the MongoDB-backed domain.UserRepository.
type UserMongo struct {
	s   *Store
	col *mongo.Collection
}

func NewUserMongo(s *Store) *UserMongo {
	return &UserMongo{s: s, col: s.DB.Collection(usersCollection)}
}

// legacy index that also counted deleted users
const legacyEmailIndex = "uniq_email"

// EnsureUserIndexes creates the user indexes. Partial filters cannot use
// $ne, so email uniqueness among non-deleted users is enforced on the
// derived email_active field.
func (s *Store) EnsureUserIndexes(ctx context.Context) error {
	idx := s.DB.Collection(usersCollection).Indexes()
	if _, err := idx.DropOne(ctx, legacyEmailIndex); err != nil && !isIndexNotFound(err) {
		return err
	}
	_, err := idx.CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email_active", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email_active").
				SetPartialFilterExpression(bson.M{"email_active": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_lookup"),
		},
		{
			Keys: bson.D{{Key: "auth_provider", Value: 1}, {Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_external_id").
				SetPartialFilterExpression(bson.M{"external_id": bson.M{"$exists": true}}),
		},
	})
	return err
}

// IndexNotFound (27) or NamespaceNotFound (26) on a fresh database.
func isIndexNotFound(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && (ce.Code == 27 || ce.Code == 26)
}

func (r *UserMongo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.find_by_id", tracer.Tag("user_id", id.String()))
	defer sp.Finish()

	var d userDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, classifyMongo(err)
	}
	u, err := d.toUser()
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserMongo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.exists_by_email")
	defer sp.Finish()

	n, err := r.col.CountDocuments(ctx, bson.M{
		"email_active": domain.NormalizeEmail(email),
	}, options.Count().SetLimit(1))
	if err != nil {
		sp.SetTag("error", err)
		return false, classifyMongo(err)
	}
	return n > 0, nil
}

func (r *UserMongo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.insert", tracer.Tag("user_id", u.ID.String()))
	defer sp.Finish()

	d := toDoc(u)
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		sp.SetTag("error", err)
		return domain.User{}, classifyMongo(err)
	}
	return d.toUser()
}

func (r *UserMongo) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, sentAt time.Time) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.set_verification_token", tracer.Tag("user_id", id.String()))
	defer sp.Finish()

	sentAt = sentAt.UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{
		"$set": bson.M{
			"email_verification_token":   tokenHash,
			"email_verification_sent_at": sentAt,
		},
		"$max": bson.M{"updated_at": sentAt},
	})
	if err != nil {
		sp.SetTag("error", err)
		return classifyMongo(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserMongo) Ping(ctx context.Context) error {
	return classifyMongo(r.s.Ping(ctx))
}

func classifyMongo(err error) error {
	if err == nil {
		return nil
	}
	if IsDup(err) {
		field := "email"
		if strings.Contains(err.Error(), "_id_") {
			field = "user_id"
		} else if strings.Contains(err.Error(), "uniq_external_id") {
			field = "external_id"
		}
		return &domain.UniqueViolationError{Field: field}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}
