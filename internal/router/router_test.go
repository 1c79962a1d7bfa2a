package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-auth/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth/internal/otp"
	otprepo "github.com/ovaphlow/pitchfork/service-auth/internal/otp/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-auth/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type nopCaptcha struct{}

func (nopCaptcha) Verify(context.Context, string, string) (bool, error) { return false, nil }

type nopIdentity struct{}

func (nopIdentity) Verify(context.Context, string) (identity.Claims, error) {
	return identity.Claims{}, identity.ErrInvalidToken
}

func newDeps(t *testing.T) Deps {
	t.Helper()
	db, err := database.OpenBolt(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop().Sugar()
	users := user.NewUserService(userrepo.NewBolt(db), user.BcryptHasher{Cost: bcrypt.MinCost}, logger)
	otps := otp.NewManager(otprepo.NewBolt(db), mail.NewLogSender(logger), logger, time.Minute, "Test")
	access := session.NewAccessIssuer("router-secret", time.Hour)
	refresh := session.NewRefreshManager(sessionrepo.NewBolt(db), time.Hour, logger)
	svc := auth.NewService(users, otps, access, refresh, nopCaptcha{}, nopIdentity{}, user.NewRiskGate(3), auth.Options{}, logger)
	return Deps{
		Auth:       auth.NewHandler(svc, auth.CookieConfig{MaxAge: time.Hour}, logger),
		Access:     access,
		CORSOrigin: "http://app.test",
	}
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	d := newDeps(t)
	h := RegisterRoutes(zap.NewNop().Sugar(), d)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	d.Ping = func(context.Context) error { return errors.New("down") }
	h = RegisterRoutes(zap.NewNop().Sugar(), d)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRoutesAreMounted(t *testing.T) {
	h := RegisterRoutes(zap.NewNop().Sugar(), newDeps(t))

	tests := []struct {
		path string
		body string
		want int
	}{
		{"/api/auth/register", `{}`, http.StatusBadRequest},
		{"/api/auth/verify-otp", `{}`, http.StatusBadRequest},
		{"/api/auth/resend-otp", `{}`, http.StatusBadRequest},
		{"/api/auth/login", `{}`, http.StatusBadRequest},
		{"/api/auth/refresh", ``, http.StatusUnauthorized},
		{"/api/auth/logout", ``, http.StatusOK},
		{"/api/auth/forgot-password", `{}`, http.StatusBadRequest},
		{"/api/auth/reset-password", `{}`, http.StatusBadRequest},
		{"/api/auth/google", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, post(tt.path, tt.body))
		assert.Equal(t, tt.want, rr.Code, tt.path)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMeWithAccessToken(t *testing.T) {
	d := newDeps(t)
	h := RegisterRoutes(zap.NewNop().Sugar(), d)
	tok, err := d.Access.Issue("42", "admin", "Root")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		User auth.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "42", body.User.AccountID)
	assert.Equal(t, "admin", body.User.Role)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	h := LoggingMiddleware(zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop().Sugar())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Server error"}`, rr.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORSMiddleware("http://app.test")(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://app.test", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.test")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := RegisterRoutes(zap.NewNop().Sugar(), newDeps(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2, zap.NewNop().Sugar())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// buckets are per client
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Zero(t, rl.Sweep())
	rl.idle = -time.Second
	assert.Equal(t, 2, rl.Sweep())
}
