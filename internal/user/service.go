package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

// Store is the account persistence contract. Implementations return
// database.ErrNotFound and database.ErrDuplicate for the matching cases.
type Store interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	MarkVerified(ctx context.Context, id string) error
	IncrementLoginAttempts(ctx context.Context, id string) (int, error)
	ResetLoginAttempts(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	LinkGoogle(ctx context.Context, id, googleID string) error
	ClaimForGoogle(ctx context.Context, id, googleID, name string) error
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("user already exists")
	ErrNoPassword   = errors.New("account has no password")
)

// UserService owns the account record: creation, lookups, the password
// check with its failure counter, and credential replacement.
type UserService struct {
	store  Store
	hasher PasswordHasher
	logger *zap.SugaredLogger
}

func NewUserService(store Store, hasher PasswordHasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserService{store: store, hasher: hasher, logger: logger}
}

// SignupUser hashes the password and creates an unverified account.
func (s *UserService) SignupUser(ctx context.Context, name, email, password string, role entity.Role) (*entity.Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	a := &entity.Account{
		ID:           utilities.NewAccountID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: &hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.store.GetByEmail(ctx, email)
	return a, notFound(err)
}

func (s *UserService) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.store.GetByID(ctx, id)
	return a, notFound(err)
}

func (s *UserService) MarkVerified(ctx context.Context, id string) error {
	return notFound(s.store.MarkVerified(ctx, id))
}

// CheckPassword compares pw with the stored hash. A mismatch increments the
// failure counter and returns false with the new count; a match resets the
// counter to zero. Social-only accounts yield ErrNoPassword.
func (s *UserService) CheckPassword(ctx context.Context, a *entity.Account, pw string) (bool, int, error) {
	if !a.HasPassword() {
		return false, a.LoginAttempts, ErrNoPassword
	}
	if !s.hasher.Verify(*a.PasswordHash, pw) {
		n, err := s.store.IncrementLoginAttempts(ctx, a.ID)
		if err != nil {
			return false, a.LoginAttempts, fmt.Errorf("increment login attempts: %w", err)
		}
		a.LoginAttempts = n
		return false, n, nil
	}
	if a.LoginAttempts != 0 {
		if err := s.store.ResetLoginAttempts(ctx, a.ID); err != nil {
			return false, a.LoginAttempts, fmt.Errorf("reset login attempts: %w", err)
		}
		a.LoginAttempts = 0
	}
	if s.hasher.NeedsRehash(*a.PasswordHash) {
		if h, err := s.hasher.Hash(pw); err == nil {
			if err := s.store.UpdatePassword(ctx, a.ID, h); err != nil {
				s.logger.Warnw("rehash password failed", "account", a.ID, "err", err)
			}
		}
	}
	return true, 0, nil
}

// SetPassword replaces the credential and clears the failure counter.
func (s *UserService) SetPassword(ctx context.Context, id, pw string) error {
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return notFound(s.store.UpdatePassword(ctx, id, hash))
}

// FindOrCreateGoogle returns the account for a verified Google identity.
// New accounts are created verified with no password. A verified account
// gets the Google subject linked. An unverified account is claimed instead:
// its password and name are replaced and claimed reports true.
func (s *UserService) FindOrCreateGoogle(ctx context.Context, email, name, subject string) (a *entity.Account, claimed bool, err error) {
	if strings.TrimSpace(name) == "" {
		name = email
	}
	a, err = s.store.GetByEmail(ctx, email)
	switch {
	case err == nil && !a.IsVerified:
		if err := s.store.ClaimForGoogle(ctx, a.ID, subject, name); err != nil {
			return nil, false, fmt.Errorf("claim account for google identity: %w", err)
		}
		a.GoogleID = &subject
		a.Name = name
		a.PasswordHash = nil
		a.IsVerified = true
		a.LoginAttempts = 0
		s.logger.Warnw("unverified account claimed by google identity", "account", a.ID, "email", email)
		return a, true, nil
	case err == nil:
		if a.GoogleID == nil || *a.GoogleID != subject {
			if err := s.store.LinkGoogle(ctx, a.ID, subject); err != nil {
				return nil, false, fmt.Errorf("link google identity: %w", err)
			}
			a.GoogleID = &subject
		}
		return a, false, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, false, err
	}

	now := time.Now().UTC()
	a = &entity.Account{
		ID:         utilities.NewAccountID(),
		Name:       name,
		Email:      email,
		GoogleID:   &subject,
		Role:       entity.RoleUser,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// lost a race with a concurrent first login
			a, err = s.store.GetByEmail(ctx, email)
			return a, false, err
		}
		return nil, false, fmt.Errorf("create account: %w", err)
	}
	s.logger.Infow("account created from google identity", "account", a.ID, "email", email)
	return a, false, nil
}

func notFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
