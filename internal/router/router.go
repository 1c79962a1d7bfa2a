package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth/internal/session"
)

// Deps are the components the route table mounts.
type Deps struct {
	Auth       *auth.Handler
	Access     *session.AccessIssuer
	CORSOrigin string
	// Ping reports storage health; nil means always healthy.
	Ping    func(ctx context.Context) error
	Limiter *RateLimiter
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				writeStatus(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(h)
	}

	h := d.Auth
	mux.Handle("POST /api/auth/register", limited(h.Register))
	mux.Handle("POST /api/auth/verify-otp", limited(h.VerifyOTP))
	mux.Handle("POST /api/auth/resend-otp", limited(h.ResendOTP))
	mux.Handle("POST /api/auth/login", limited(h.Login))
	mux.Handle("POST /api/auth/forgot-password", limited(h.ForgotPassword))
	mux.Handle("POST /api/auth/reset-password", limited(h.ResetPassword))
	mux.Handle("POST /api/auth/google", limited(h.Google))
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/auth/me", auth.RequireAuth(d.Access, logger)(http.HandlerFunc(h.Me)))

	// outermost first: request logging, panic recovery, CORS, security headers
	var handler http.Handler = mux
	handler = SecurityHeadersMiddleware()(handler)
	handler = CORSMiddleware(d.CORSOrigin)(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	return handler
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
