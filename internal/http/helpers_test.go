package http_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/auth"
	"github.com/cyplat/gandalf/internal/domain"
	api "github.com/cyplat/gandalf/internal/http"
	"github.com/cyplat/gandalf/internal/repo"
	"github.com/cyplat/gandalf/internal/security"
	"github.com/cyplat/gandalf/internal/user"
)

type testEnv struct {
	T        *testing.T
	Repo     *repo.UserMemory
	Strategy *auth.EmailPassword
	Notifier *captureNotifier
	Router   *gin.Engine
}

type captureNotifier struct {
	ch chan domain.VerificationEmail
}

func (n *captureNotifier) SendVerification(_ context.Context, msg domain.VerificationEmail) error {
	n.ch <- msg
	return nil
}

type envOpts struct {
	registry *auth.Registry
	limiter  api.Limiter
	users    api.UserGetter
	store    api.Pinger
}

func newTestEnv(t *testing.T, opts envOpts) *testEnv {
	t.Helper()

	mem := repo.NewUserMemory()
	hasher, err := security.NewArgon2Hasher(security.Argon2Params{
		MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	svc := user.NewService(mem, "")
	n := &captureNotifier{ch: make(chan domain.VerificationEmail, 16)}
	ep := auth.NewEmailPassword(svc, hasher, nil, n, zap.NewNop(), auth.Options{PasswordMinLength: 8})
	t.Cleanup(ep.Wait)

	reg := auth.NewRegistry(map[auth.Method]auth.Strategy{auth.MethodEmailPassword: ep})
	if opts.registry != nil {
		reg = opts.registry
	}

	var users api.UserGetter = svc
	if opts.users != nil {
		users = opts.users
	}
	var store api.Pinger = mem
	if opts.store != nil {
		store = opts.store
	}

	gin.SetMode(gin.TestMode)
	r := api.NewRouter(api.NewHandler(reg, users, store, zap.NewNop()), opts.limiter)

	return &testEnv{T: t, Repo: mem, Strategy: ep, Notifier: n, Router: r}
}

func (e *testEnv) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

type brokenUsers struct{}

func (brokenUsers) GetUser(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, domain.ErrPoolTimeout
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }
