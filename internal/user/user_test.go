package user

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

func newTestService(t *testing.T) (*UserService, *userrepo.Bolt) {
	t.Helper()
	db, err := database.OpenBolt(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := userrepo.NewBolt(db)
	return NewUserService(store, BcryptHasher{Cost: bcrypt.MinCost}, zap.NewNop().Sugar()), store
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"alice@test.com", true},
		{"a.b+tag@mail.example.org", true},
		{"alice@test", false},
		{"alice.test.com", false},
		{"alice @test.com", false},
		{"alice@@test.com", false},
		{"alice@test..com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.in), tt.in)
	}
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Str0ng!Pw", true},
		{"Aa1!aaaa", true},
		{"Aa1!aaa", false},
		{"str0ng!pw", false},
		{"STR0NG!PW", false},
		{"Strong!Pw", false},
		{"Str0ngPwd", false},
		{"", false},
		{"Str0ng!Pw" + strings.Repeat("a", MaxPasswordBytes-9), true},
		{"Str0ng!Pw" + strings.Repeat("a", MaxPasswordBytes-8), false},
		// multibyte runes count against the byte limit
		{"Str0ng!Pw" + strings.Repeat("é", 32), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StrongPassword(tt.in), tt.in)
	}
}

func TestRiskGate(t *testing.T) {
	g := NewRiskGate(0)
	assert.Equal(t, DefaultRiskThreshold, g.Threshold)
	assert.False(t, g.Challenged(0))
	assert.False(t, g.Challenged(2))
	assert.True(t, g.Challenged(3))
	assert.True(t, g.Challenged(10))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("Str0ng!Pw")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!Pw", hash)
	assert.True(t, h.Verify(hash, "Str0ng!Pw"))
	assert.False(t, h.Verify(hash, "wrong"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, BcryptHasher{Cost: bcrypt.MinCost + 1}.NeedsRehash(hash))
	assert.False(t, h.NeedsRehash("not-a-hash"))
}

func TestSignupUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.SignupUser(ctx, " Alice ", "alice@test.com", "Str0ng!Pw", entity.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.Name)
	assert.False(t, a.IsVerified)
	assert.Zero(t, a.LoginAttempts)
	require.True(t, a.HasPassword())
	assert.NotEqual(t, "Str0ng!Pw", *a.PasswordHash)

	_, err = svc.SignupUser(ctx, "Other", "alice@test.com", "Str0ng!Pw", entity.RoleUser)
	assert.ErrorIs(t, err, ErrEmailTaken)

	// email is matched as stored
	_, err = svc.GetByEmail(ctx, "ALICE@test.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCheckPassword_CountsFailuresAndResets(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	a, err := svc.SignupUser(ctx, "Alice", "alice@test.com", "Str0ng!Pw", entity.RoleUser)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		ok, n, err := svc.CheckPassword(ctx, a, "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, i, n)
	}
	stored, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.LoginAttempts)

	ok, n, err := svc.CheckPassword(ctx, stored, "Str0ng!Pw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, n)
	stored, err = store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
}

func TestCheckPassword_SocialOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, _, err := svc.FindOrCreateGoogle(ctx, "g@test.com", "G", "sub-1")
	require.NoError(t, err)
	_, _, err = svc.CheckPassword(ctx, a, "anything")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestSetPassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	a, err := svc.SignupUser(ctx, "Alice", "alice@test.com", "Str0ng!Pw", entity.RoleUser)
	require.NoError(t, err)
	_, err = store.IncrementLoginAttempts(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, a.ID, "N3w!Passw"))
	stored, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.True(t, BcryptHasher{}.Verify(*stored.PasswordHash, "N3w!Passw"))

	assert.ErrorIs(t, svc.SetPassword(ctx, "missing", "N3w!Passw"), ErrUserNotFound)
}

func TestFindOrCreateGoogle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, claimed, err := svc.FindOrCreateGoogle(ctx, "g@test.com", "", "sub-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.True(t, created.IsVerified)
	assert.False(t, created.HasPassword())
	assert.Equal(t, "g@test.com", created.Name)
	require.NotNil(t, created.GoogleID)
	assert.Equal(t, "sub-1", *created.GoogleID)

	again, claimed, err := svc.FindOrCreateGoogle(ctx, "g@test.com", "G", "sub-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, created.ID, again.ID)
}

func TestFindOrCreateGoogle_ClaimsUnverifiedAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	squatter, err := svc.SignupUser(ctx, "Mallory", "bob@test.com", "Att4cker!Pw", entity.RoleUser)
	require.NoError(t, err)
	_, _, err = svc.CheckPassword(ctx, squatter, "wrong")
	require.NoError(t, err)

	a, claimed, err := svc.FindOrCreateGoogle(ctx, "bob@test.com", "Bob", "sub-2")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, squatter.ID, a.ID)
	assert.False(t, a.HasPassword())

	stored, err := svc.GetByID(ctx, squatter.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.False(t, stored.HasPassword())
	assert.Equal(t, "Bob", stored.Name)
	assert.Zero(t, stored.LoginAttempts)
	assert.Equal(t, "sub-2", *stored.GoogleID)

	_, _, err = svc.CheckPassword(ctx, stored, "Att4cker!Pw")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestFindOrCreateGoogle_LinksVerifiedAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	local, err := svc.SignupUser(ctx, "Bob", "bob@test.com", "Str0ng!Pw", entity.RoleUser)
	require.NoError(t, err)
	require.NoError(t, svc.MarkVerified(ctx, local.ID))

	linked, claimed, err := svc.FindOrCreateGoogle(ctx, "bob@test.com", "Robert", "sub-2")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, local.ID, linked.ID)

	stored, err := svc.GetByID(ctx, local.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPassword())
	assert.Equal(t, "Bob", stored.Name)
	assert.Equal(t, "sub-2", *stored.GoogleID)
	ok, _, err := svc.CheckPassword(ctx, stored, "Str0ng!Pw")
	require.NoError(t, err)
	assert.True(t, ok)
}
