package http_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cyplat/gandalf/internal/auth"
	api "github.com/cyplat/gandalf/internal/http"
	"github.com/cyplat/gandalf/internal/security"
)

type registerResp struct {
	User struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		AuthProvider string `json:"auth_provider"`
	} `json:"user"`
	Message string `json:"message"`
}

type errResp struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func Test_Register_Then_GetUser(t *testing.T) {
	env := newTestEnv(t, envOpts{})

	// 1) REGISTER
	w := env.do("POST", "/api/v1/users/register", `{"email":"alice@example.com","password":"correct horse battery"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register code=%d body=%s", w.Code, w.Body.String())
	}
	var rr registerResp
	if err := json.Unmarshal(w.Body.Bytes(), &rr); err != nil {
		t.Fatalf("register resp parse: %v; body=%s", err, w.Body.String())
	}
	if rr.User.Email != "alice@example.com" || rr.User.AuthProvider != "local" {
		t.Fatalf("unexpected user %+v", rr.User)
	}
	if rr.Message != "Registration successful. Please verify your email." {
		t.Fatalf("message=%q", rr.Message)
	}
	if _, err := uuid.Parse(rr.User.ID); err != nil {
		t.Fatalf("id %q is not a uuid", rr.User.ID)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID response header")
	}

	// 2) GET
	w = env.do("GET", "/api/v1/users/"+rr.User.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get code=%d body=%s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("get resp parse: %v", err)
	}
	want := map[string]any{
		"user_id":         rr.User.ID,
		"email":           "alice@example.com",
		"user_state":      "registered",
		"auth_provider":   "local",
		"email_verified":  false,
		"account_enabled": true,
		"requires_mfa":    false,
		"data_region":     "us-east",
		"last_login_at":   nil,
		"username":        nil,
		"external_id":     nil,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if _, err := time.Parse(time.RFC3339, got["created_at"].(string)); err != nil {
		t.Errorf("created_at not RFC3339: %v", got["created_at"])
	}
	if _, ok := got["password_hash"]; ok {
		t.Error("password hash must never be exposed")
	}

	// 3) verification dispatched with a token whose hash is stored
	select {
	case msg := <-env.Notifier.ch:
		if msg.Email != "alice@example.com" {
			t.Fatalf("notified %q", msg.Email)
		}
		u, _ := env.Repo.FindByID(t.Context(), msg.UserID)
		if u == nil || u.EmailVerificationToken == nil || *u.EmailVerificationToken != security.HashToken(msg.Token) {
			t.Fatal("stored token hash does not match dispatched token")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("verification email not dispatched")
	}

	// 4) DUPLICATE
	w = env.do("POST", "/api/v1/users/register", `{"email":"Alice@Example.com","password":"another password"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate code=%d body=%s", w.Code, w.Body.String())
	}
	var er errResp
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Error != "User already exists" || er.Code != "USER_EXISTS" {
		t.Fatalf("duplicate body=%s", w.Body.String())
	}
	if env.Repo.Len() != 1 {
		t.Fatalf("rows=%d, want 1", env.Repo.Len())
	}
}

func Test_Register_Errors(t *testing.T) {
	env := newTestEnv(t, envOpts{})

	cases := []struct {
		name    string
		body    string
		code    int
		error   string
		errCode string
	}{
		{"invalid email", `{"email":"not-an-email","password":"password123"}`, http.StatusBadRequest, "Invalid email format", "INVALID_EMAIL"},
		{"short password", `{"email":"bob@example.com","password":"short"}`, http.StatusBadRequest, "Validation failed", ""},
		{"broken json", `{"email":`, http.StatusBadRequest, "Validation failed", ""},
		{"missing password", `{"email":"nopw@example.com"}`, http.StatusBadRequest, "Validation failed", ""},
		{"null password", `{"email":"nopw@example.com","password":null}`, http.StatusBadRequest, "Validation failed", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do("POST", "/api/v1/users/register", tc.body, nil)
			if w.Code != tc.code {
				t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
			}
			var er errResp
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if er.Error != tc.error || er.Code != tc.errCode {
				t.Fatalf("body=%s", w.Body.String())
			}
		})
	}
	if env.Repo.Len() != 0 {
		t.Fatalf("rows=%d, want 0", env.Repo.Len())
	}
}

func Test_Register_IgnoresClientAuthMethod(t *testing.T) {
	env := newTestEnv(t, envOpts{})
	w := env.do("POST", "/api/v1/users/register",
		`{"email":"carol@example.com","password":"password123","auth_method":"google"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	var resp registerResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.User.AuthProvider != "local" {
		t.Fatalf("auth_provider=%q", resp.User.AuthProvider)
	}
}

func Test_Register_NoStrategyConfigured(t *testing.T) {
	env := newTestEnv(t, envOpts{registry: auth.NewRegistry(nil)})
	w := env.do("POST", "/api/v1/users/register", `{"email":"bob@example.com","password":"password123"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	var er errResp
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if er.Code != "METHOD_NOT_SUPPORTED" {
		t.Fatalf("body=%s", w.Body.String())
	}
	if env.Repo.Len() != 0 {
		t.Fatalf("rows=%d, want 0", env.Repo.Len())
	}
}

func Test_GetUser_NotFound(t *testing.T) {
	env := newTestEnv(t, envOpts{})

	for _, path := range []string{"/api/v1/users/" + uuid.NewString(), "/api/v1/users/not-a-uuid"} {
		w := env.do("GET", path, "", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s code=%d", path, w.Code)
		}
		var er errResp
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		if er.Error != "User not found" {
			t.Fatalf("%s body=%s", path, w.Body.String())
		}
	}
}

func Test_GetUser_StoreFailure(t *testing.T) {
	env := newTestEnv(t, envOpts{users: brokenUsers{}})
	w := env.do("GET", "/api/v1/users/"+uuid.NewString(), "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d", w.Code)
	}
	var er errResp
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Error != "Failed to get user" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func Test_RateLimit(t *testing.T) {
	env := newTestEnv(t, envOpts{limiter: api.NewRateLimiter(2, time.Minute)})

	for i, email := range []string{"a@example.com", "b@example.com"} {
		w := env.do("POST", "/api/v1/users/register", `{"email":"`+email+`","password":"password123"}`, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("attempt %d code=%d", i+1, w.Code)
		}
	}
	w := env.do("POST", "/api/v1/users/register", `{"email":"c@example.com","password":"password123"}`, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("code=%d, want 429", w.Code)
	}
	// lookups are not limited
	w = env.do("GET", "/api/v1/users/"+uuid.NewString(), "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get code=%d", w.Code)
	}
}

func Test_RequestID_Propagated(t *testing.T) {
	env := newTestEnv(t, envOpts{})
	w := env.do("GET", "/healthz", "", map[string]string{"X-Request-ID": "abc-123"})
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID=%q", got)
	}
}

func Test_Healthz(t *testing.T) {
	env := newTestEnv(t, envOpts{})
	if w := env.do("GET", "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthy code=%d", w.Code)
	}

	env = newTestEnv(t, envOpts{store: downStore{}})
	if w := env.do("GET", "/healthz", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy code=%d", w.Code)
	}
}

func Test_Metrics_Exposed(t *testing.T) {
	env := newTestEnv(t, envOpts{})
	w := env.do("GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics code=%d", w.Code)
	}
}
