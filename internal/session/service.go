package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

const (
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// 384 bits of randomness.
	refreshTokenBytes = 48
)

// ErrInvalidRefreshToken means the presented token is unknown, expired or
// was already rotated; the caller must require a fresh login.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Store is the refresh-token persistence contract. DeleteByHash returns
// database.ErrNotFound when there was nothing to delete.
type Store interface {
	Create(ctx context.Context, t *entity.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*entity.RefreshToken, error)
	DeleteByHash(ctx context.Context, hash string) error
	DeleteByAccount(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshManager issues, rotates and revokes opaque refresh tokens.
type RefreshManager struct {
	store  Store
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRefreshManager(store Store, ttl time.Duration, logger *zap.SugaredLogger) *RefreshManager {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshManager{store: store, ttl: ttl, logger: logger, now: time.Now}
}

func (m *RefreshManager) TTL() time.Duration { return m.ttl }

// Issue returns the plaintext token. Only its hash is persisted.
func (m *RefreshManager) Issue(ctx context.Context, accountID string) (string, *entity.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	plain := hex.EncodeToString(buf)
	now := m.now().UTC()
	rec := &entity.RefreshToken{
		ID:        utilities.NewRecordID(),
		AccountID: accountID,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return plain, rec, nil
}

// Rotate exchanges a valid token for a new one on the same account. The old
// record is deleted first; if another caller already deleted it the rotation
// fails, so each token is exchanged at most once. Expired records are
// removed on sight.
func (m *RefreshManager) Rotate(ctx context.Context, presented string) (string, *entity.RefreshToken, error) {
	if presented == "" {
		return "", nil, ErrInvalidRefreshToken
	}
	hash := HashToken(presented)
	rec, err := m.store.GetByHash(ctx, hash)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return "", nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if err := m.store.DeleteByHash(ctx, hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			m.logger.Warnw("refresh token reused during rotation", "account", rec.AccountID)
			return "", nil, ErrInvalidRefreshToken
		}
		return "", nil, fmt.Errorf("delete refresh token: %w", err)
	}
	if rec.Expired(m.now()) {
		return "", nil, ErrInvalidRefreshToken
	}
	return m.Issue(ctx, rec.AccountID)
}

// Revoke deletes the record for presented. Unknown tokens are not an error.
func (m *RefreshManager) Revoke(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}
	err := m.store.DeleteByHash(ctx, HashToken(presented))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll ends every session of the account.
func (m *RefreshManager) RevokeAll(ctx context.Context, accountID string) error {
	if err := m.store.DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (m *RefreshManager) DeleteExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now().UTC())
}

// HashToken is the hex SHA-256 digest used as the lookup key.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
