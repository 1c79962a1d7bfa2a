package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteverify(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReCaptcha_Verify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"accepted", http.StatusOK, `{"success":true}`, true, false},
		{"rejected", http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`, false, false},
		{"server error", http.StatusInternalServerError, ``, false, true},
		{"bad json", http.StatusOK, `not json`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSiteverify(t, tt.status, tt.body)
			c := NewReCaptcha("secret", srv.URL, srv.Client())
			ok, err := c.Verify(context.Background(), "tok", "")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestReCaptcha_EmptyTokenAndSecret(t *testing.T) {
	ok, err := NewReCaptcha("secret", "http://unused", nil).Verify(context.Background(), "", "")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = NewReCaptcha("", "", nil).Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
