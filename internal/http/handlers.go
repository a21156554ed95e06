package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/auth"
	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/log"
)

type UserGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Registry *auth.Registry
	Users    UserGetter
	Store    Pinger
	Log      *zap.Logger
}

func NewHandler(reg *auth.Registry, users UserGetter, store Pinger, lg *zap.Logger) *Handler {
	return &Handler{Registry: reg, Users: users, Store: store, Log: lg.Named("http")}
}

// Only email/password registration is reachable over HTTP; the method is
// chosen by the route, never by the client.
type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type registerResp struct {
	User    domain.RegisteredUser `json:"user"`
	Message string                `json:"message"`
}

type errorResp struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Register godoc
// @Summary Register user
// @Tags users
// @Accept json
// @Produce json
// @Param payload body registerReq true "register"
// @Success 201 {object} registerResp
// @Failure 400 {object} errorResp
// @Failure 409 {object} errorResp
// @Failure 429 {object} errorResp
// @Failure 500 {object} errorResp
// @Router /api/v1/users/register [post]
func (h *Handler) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "Validation failed", Details: err.Error()})
		return
	}
	method := auth.MethodEmailPassword

	ctx := c.Request.Context()
	lg := log.FromContext(ctx, h.Log)

	strategy, err := h.Registry.Strategy(method)
	if err != nil {
		lg.Error("no strategy for method", zap.String("method", string(method)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResp{Error: "Authentication method not supported", Code: "METHOD_NOT_SUPPORTED"})
		return
	}

	u, err := strategy.Register(ctx, domain.RegistrationInput{Email: in.Email, Password: &in.Password})
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, errorResp{Error: "Invalid email format", Code: "INVALID_EMAIL"})
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, errorResp{Error: "Validation failed", Details: ve.Details})
		case errors.Is(err, domain.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, errorResp{Error: "User already exists", Code: "USER_EXISTS"})
		default:
			lg.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorResp{Error: "Registration failed", Code: "REGISTRATION_ERROR"})
		}
		return
	}

	c.JSON(http.StatusCreated, registerResp{
		User:    u,
		Message: "Registration successful. Please verify your email.",
	})
}

type userResp struct {
	UserID         uuid.UUID `json:"user_id"`
	Username       *string   `json:"username"`
	Email          string    `json:"email"`
	ExternalID     *string   `json:"external_id"`
	AccountEnabled bool      `json:"account_enabled"`
	EmailVerified  bool      `json:"email_verified"`
	AuthProvider   string    `json:"auth_provider"`
	UserState      string    `json:"user_state"`
	RequiresMFA    bool      `json:"requires_mfa"`
	DataRegion     string    `json:"data_region"`
	CreatedAt      string    `json:"created_at"`
	LastLoginAt    *string   `json:"last_login_at"`
}

func toUserResp(u *domain.User) userResp {
	r := userResp{
		UserID:         u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ExternalID:     u.ExternalID,
		AccountEnabled: u.AccountEnabled,
		EmailVerified:  u.EmailVerified,
		AuthProvider:   u.AuthProvider.String(),
		UserState:      u.UserState.String(),
		RequiresMFA:    u.RequiresMFA,
		DataRegion:     u.DataRegion,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.UTC().Format(time.RFC3339)
		r.LastLoginAt = &s
	}
	return r
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Param user_id path string true "user id (uuid)"
// @Success 200 {object} userResp
// @Failure 404 {object} errorResp
// @Failure 500 {object} errorResp
// @Router /api/v1/users/{user_id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "User not found"})
		return
	}
	u, err := h.Users.GetUser(c.Request.Context(), id)
	if err != nil {
		log.FromContext(c.Request.Context(), h.Log).Error("get user failed", zap.String("user_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResp{Error: "Failed to get user"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "User not found"})
		return
	}
	c.JSON(http.StatusOK, toUserResp(u))
}

// Healthz godoc
// @Summary Liveness and storage check
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			log.FromContext(c.Request.Context(), h.Log).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
