package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var (
	ErrInvalidToken  = errors.New("invalid identity token")
	ErrNotConfigured = errors.New("google client id not configured")
)

// Claims is the verified identity extracted from a Google ID token.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

type validator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks ID tokens issued to ClientID. It fails closed: any
// validation error, a missing email or an unverified email is ErrInvalidToken.
type GoogleVerifier struct {
	clientID string
	v        validator
}

func NewGoogleVerifier(ctx context.Context, clientID string, httpClient *http.Client) (*GoogleVerifier, error) {
	opts := []option.ClientOption{}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, v: v}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	if g.clientID == "" {
		return Claims{}, ErrNotConfigured
	}
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	p, err := g.v.Validate(ctx, token, g.clientID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email, _ := p.Claims["email"].(string)
	verified, _ := p.Claims["email_verified"].(bool)
	if email == "" || !verified || p.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	name, _ := p.Claims["name"].(string)
	return Claims{Subject: p.Subject, Email: email, Name: name}, nil
}
