package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var ErrNotConfigured = errors.New("recaptcha secret not configured")

// ReCaptcha verifies tokens against the siteverify endpoint. A false result
// with a nil error is an explicit rejection; transport and decoding failures
// are returned as errors.
type ReCaptcha struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewReCaptcha(secret, verifyURL string, client *http.Client) *ReCaptcha {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ReCaptcha{secret: secret, verifyURL: verifyURL, client: client}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (c *ReCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if c.secret == "" {
		return false, ErrNotConfigured
	}
	if token == "" {
		return false, nil
	}
	form := url.Values{"secret": {c.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("recaptcha verify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("recaptcha verify: unexpected status %d", resp.StatusCode)
	}
	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("recaptcha decode: %w", err)
	}
	return body.Success, nil
}
