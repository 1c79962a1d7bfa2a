package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/session"
)

// Identity is the caller decoded from a verified access token.
type Identity struct {
	AccountID string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by RequireAuth, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// access token. Every failure gets the same 401 response.
func RequireAuth(issuer *session.AccessIssuer, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, logger, newError(KindUnauthenticated, "Invalid or expired token"))
				return
			}
			claims, err := issuer.Verify(token)
			if err != nil {
				logger.Debugw("access token rejected", "path", r.URL.Path)
				writeError(w, logger, newError(KindUnauthenticated, "Invalid or expired token"))
				return
			}
			id := Identity{AccountID: claims.Subject, Name: claims.Name, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
