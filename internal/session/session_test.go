package session

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sessionrepo "github.com/ovaphlow/pitchfork/service-auth/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

func newTestManager(t *testing.T) (*RefreshManager, *sessionrepo.Bolt) {
	t.Helper()
	db, err := database.OpenBolt(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := sessionrepo.NewBolt(db)
	return NewRefreshManager(store, time.Hour, zap.NewNop().Sugar()), store
}

func TestAccessIssuer_RoundTrip(t *testing.T) {
	a := NewAccessIssuer("secret", 0)
	tok, err := a.Issue("acc-1", "user", "Alice")
	require.NoError(t, err)

	claims, err := a.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "AuthService", claims.System)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestAccessIssuer_Rejects(t *testing.T) {
	a := NewAccessIssuer("secret", time.Minute)
	tok, err := a.Issue("acc-1", "user", "Alice")
	require.NoError(t, err)

	_, err = NewAccessIssuer("other", time.Minute).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	expired := NewAccessIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = expired.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	_, err = a.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "acc-1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestRefresh_IssueStoresOnlyHash(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	plain, rec, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, plain, 96)
	assert.NotEqual(t, plain, rec.TokenHash)
	assert.Equal(t, HashToken(plain), rec.TokenHash)

	stored, err := store.GetByHash(ctx, rec.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", stored.AccountID)
	assert.False(t, strings.Contains(stored.TokenHash, plain))
}

func TestRefresh_RotateIsSingleUse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, _, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)
	second, rec, err := m.Rotate(ctx, first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "acc-1", rec.AccountID)

	_, _, err = m.Rotate(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = m.Rotate(ctx, second)
	assert.NoError(t, err)
}

func TestRefresh_RotateExpired(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	plain, rec, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = m.Rotate(ctx, plain)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = store.GetByHash(ctx, rec.TokenHash)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRefresh_RotateUnknownOrEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	_, _, err := m.Rotate(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = m.Rotate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_ConcurrentRotateSingleWinner(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	plain, _, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Rotate(ctx, plain); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRefresh_RevokeIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	plain, _, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, plain))
	require.NoError(t, m.Revoke(ctx, plain))
	require.NoError(t, m.Revoke(ctx, ""))
	_, _, err = m.Rotate(ctx, plain)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_RevokeAllAndDeleteExpired(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	a1, _, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)
	a2, _, err := m.Issue(ctx, "acc-1")
	require.NoError(t, err)
	_, _, err = m.Issue(ctx, "acc-2")
	require.NoError(t, err)

	require.NoError(t, m.RevokeAll(ctx, "acc-1"))
	for _, tok := range []string{a1, a2} {
		_, _, err := m.Rotate(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
