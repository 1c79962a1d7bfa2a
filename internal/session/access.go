package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTTL = time.Hour
	systemName       = "AuthService"
)

// ErrInvalidAccessToken hides which check failed: signature, expiry or shape.
var ErrInvalidAccessToken = errors.New("invalid or expired token")

// AccessClaims are embedded in every access token.
type AccessClaims struct {
	Role   string `json:"role"`
	Name   string `json:"name"`
	System string `json:"system"`
	jwt.RegisteredClaims
}

// AccessIssuer signs short-lived HS256 tokens with a server-held secret.
type AccessIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAccessIssuer(secret string, ttl time.Duration) *AccessIssuer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &AccessIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *AccessIssuer) Issue(accountID, role, name string) (string, error) {
	now := a.now()
	claims := AccessClaims{
		Role:   role,
		Name:   name,
		System: systemName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (a *AccessIssuer) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}
