package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth/internal/otp/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

const (
	DefaultTTL = 10 * time.Minute
	codeMin    = 100000
	codeSpan   = 900000
)

// ErrInvalidCode covers a wrong, expired or already used code alike.
var ErrInvalidCode = errors.New("invalid or expired OTP")

// Store is the OTP persistence contract. Consume returns database.ErrNotFound
// when no unused, unexpired record matches.
type Store interface {
	Create(ctx context.Context, rec *entity.Record) error
	DeleteByAccount(ctx context.Context, accountID string) error
	Consume(ctx context.Context, accountID string, purpose entity.Purpose, code string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Recipient identifies who the code is mailed to.
type Recipient struct {
	AccountID string
	Email     string
	Name      string
}

type Manager struct {
	store   Store
	sender  mail.Sender
	logger  *zap.SugaredLogger
	ttl     time.Duration
	product string
	now     func() time.Time
}

func NewManager(store Store, sender mail.Sender, logger *zap.SugaredLogger, ttl time.Duration, product string) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, sender: sender, logger: logger, ttl: ttl, product: product, now: time.Now}
}

// Issue replaces every earlier code of the account with a fresh one and
// mails it. When sending fails the new record stays persisted and the send
// error is returned.
func (m *Manager) Issue(ctx context.Context, to Recipient, purpose entity.Purpose) (string, error) {
	if err := m.store.DeleteByAccount(ctx, to.AccountID); err != nil {
		return "", fmt.Errorf("delete previous otps: %w", err)
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	now := m.now().UTC()
	rec := &entity.Record{
		ID:        utilities.NewRecordID(),
		AccountID: to.AccountID,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create otp: %w", err)
	}

	msg, err := mail.OTPMessage(to.Email, to.Name, m.product, action(purpose), code, m.ttl)
	if err != nil {
		return "", err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("send otp email: %w", err)
	}
	m.logger.Infow("otp issued", "account", to.AccountID, "purpose", purpose)
	return code, nil
}

// Verify consumes a matching code exactly once.
func (m *Manager) Verify(ctx context.Context, accountID string, purpose entity.Purpose, code string) error {
	if len(code) != 6 {
		return ErrInvalidCode
	}
	err := m.store.Consume(ctx, accountID, purpose, code, m.now().UTC())
	if errors.Is(err, database.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// RevokeAll deletes every outstanding code of the account.
func (m *Manager) RevokeAll(ctx context.Context, accountID string) error {
	if err := m.store.DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke otps: %w", err)
	}
	return nil
}

func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now().UTC())
}

// GenerateCode returns a uniformly random code in 100000..999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func action(p entity.Purpose) string {
	if p == entity.PurposeReset {
		return "password reset"
	}
	return "verification"
}
