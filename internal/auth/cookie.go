package auth

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refreshToken"

// CookieConfig controls the refresh-token cookie. Secure is forced on in
// production.
type CookieConfig struct {
	Path   string
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/api/auth"
	}
	return c.Path
}

func (c CookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     c.path(),
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     c.path(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
