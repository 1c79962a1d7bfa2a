package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-auth/internal/otp"
	otpentity "github.com/ovaphlow/pitchfork/service-auth/internal/otp/entity"
	"github.com/ovaphlow/pitchfork/service-auth/internal/session"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
)

// CaptchaVerifier answers whether a human-verification token is genuine.
// (false, nil) is an explicit rejection.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// IdentityVerifier validates an external identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (identity.Claims, error)
}

type Options struct {
	AllowPrivilegedSignup bool
}

// Service runs the registration, login, session and password-reset flows.
type Service struct {
	users   *user.UserService
	otps    *otp.Manager
	access  *session.AccessIssuer
	refresh *session.RefreshManager
	captcha CaptchaVerifier
	google  IdentityVerifier
	gate    user.RiskGate
	opts    Options
	logger  *zap.SugaredLogger
}

func NewService(
	users *user.UserService,
	otps *otp.Manager,
	access *session.AccessIssuer,
	refresh *session.RefreshManager,
	captcha CaptchaVerifier,
	google IdentityVerifier,
	gate user.RiskGate,
	opts Options,
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		users:   users,
		otps:    otps,
		access:  access,
		refresh: refresh,
		captcha: captcha,
		google:  google,
		gate:    gate,
		opts:    opts,
		logger:  logger,
	}
}

// Session is what a successful login hands back to the transport layer.
// RefreshToken is the plaintext and goes only into the cookie.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         entity.PublicView
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates an unverified account and mails a signup code. It
// returns the stored email for the client's OTP step.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := strings.TrimSpace(in.Email)
	if strings.TrimSpace(in.Name) == "" || email == "" || in.Password == "" {
		return "", newError(KindValidation, "All fields are required")
	}
	if !user.ValidEmail(email) {
		return "", newError(KindValidation, "Email is not valid")
	}
	if !user.StrongPassword(in.Password) {
		return "", newError(KindValidation, "Password is not strong enough")
	}
	role := entity.RoleUser
	if in.Role != "" {
		role = entity.Role(in.Role)
		if !role.Valid() {
			return "", newError(KindValidation, "Role is not valid")
		}
		if role == entity.RoleAdmin && !s.opts.AllowPrivilegedSignup {
			return "", newError(KindValidation, "Role is not allowed")
		}
	}

	a, err := s.users.SignupUser(ctx, in.Name, email, in.Password, role)
	if errors.Is(err, user.ErrEmailTaken) {
		return "", newError(KindConflict, "User already exists")
	}
	if err != nil {
		return "", unexpected(err)
	}
	s.logger.Infow("account registered", "account", a.ID, "email", a.Email)

	if _, err := s.otps.Issue(ctx, recipient(a), otpentity.PurposeSignup); err != nil {
		return "", unexpected(err)
	}
	return a.Email, nil
}

// VerifyOTP consumes a signup code and marks the account verified.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return newError(KindValidation, "Email and OTP are required")
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if err := s.otps.Verify(ctx, a.ID, otpentity.PurposeSignup, strings.TrimSpace(code)); err != nil {
		return otpError(err)
	}
	if err := s.users.MarkVerified(ctx, a.ID); err != nil {
		return unexpected(err)
	}
	s.logger.Infow("account verified", "account", a.ID)
	return nil
}

// ResendOTP replaces any outstanding signup code with a new one.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return newError(KindValidation, "Email is required")
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if a.IsVerified {
		return newError(KindValidation, "User already verified")
	}
	if _, err := s.otps.Issue(ctx, recipient(a), otpentity.PurposeSignup); err != nil {
		return unexpected(err)
	}
	return nil
}

type LoginInput struct {
	Email        string
	Password     string
	CaptchaToken string
	RemoteIP     string
}

// Login checks, in order: required fields, account existence, the risk
// gate, verification, presence of a password and the password itself.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, newError(KindValidation, "Email and password are required")
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}

	if s.gate.Challenged(a.LoginAttempts) {
		if in.CaptchaToken == "" {
			return nil, &Error{Kind: KindVerificationRequired, Message: "reCAPTCHA required", CaptchaRequired: true}
		}
		ok, err := s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP)
		if err != nil {
			return nil, unexpected(err)
		}
		if !ok {
			return nil, &Error{Kind: KindVerificationFailed, Message: "reCAPTCHA verification failed", CaptchaRequired: true}
		}
	}

	if !a.IsVerified {
		return nil, newError(KindForbidden, "Please verify your email first")
	}

	ok, attempts, err := s.users.CheckPassword(ctx, a, in.Password)
	if errors.Is(err, user.ErrNoPassword) {
		return nil, newError(KindValidation, "Use Google login")
	}
	if err != nil {
		return nil, unexpected(err)
	}
	if !ok {
		s.logger.Infow("login failed", "account", a.ID, "attempts", attempts)
		if s.gate.Challenged(attempts) {
			return nil, &Error{Kind: KindUnauthenticated, Message: "reCAPTCHA required", CaptchaRequired: true}
		}
		return nil, newError(KindUnauthenticated, "Invalid credentials")
	}

	return s.startSession(ctx, a)
}

// Refresh rotates the presented refresh token and mints a new access token.
func (s *Service) Refresh(ctx context.Context, presented string) (*Session, error) {
	if presented == "" {
		return nil, newError(KindUnauthenticated, "No refresh token")
	}
	plain, rec, err := s.refresh.Rotate(ctx, presented)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, newError(KindForbidden, "Invalid refresh token")
	}
	if err != nil {
		return nil, unexpected(err)
	}

	a, err := s.users.GetByID(ctx, rec.AccountID)
	if errors.Is(err, user.ErrUserNotFound) {
		if err := s.refresh.Revoke(ctx, plain); err != nil {
			s.logger.Warnw("revoke refresh token of missing account", "account", rec.AccountID, "err", err)
		}
		return nil, newError(KindForbidden, "Invalid refresh token")
	}
	if err != nil {
		return nil, unexpected(err)
	}
	access, err := s.access.Issue(a.ID, string(a.Role), a.Name)
	if err != nil {
		return nil, unexpected(err)
	}
	return &Session{AccessToken: access, RefreshToken: plain, User: a.Public()}, nil
}

// Logout revokes the presented refresh token; unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, presented string) error {
	if err := s.refresh.Revoke(ctx, presented); err != nil {
		return unexpected(err)
	}
	return nil
}

type ForgotPasswordInput struct {
	Email        string
	CaptchaToken string
	RemoteIP     string
}

// ForgotPassword requires a human-verification token before it looks the
// account up, then mails a reset code.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.CaptchaToken == "" {
		return newError(KindValidation, "Email and reCAPTCHA token are required")
	}
	ok, err := s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP)
	if err != nil {
		return unexpected(err)
	}
	if !ok {
		return newError(KindValidation, "reCAPTCHA verification failed")
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if _, err := s.otps.Issue(ctx, recipient(a), otpentity.PurposeReset); err != nil {
		return unexpected(err)
	}
	return nil
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

// ResetPassword replaces the password after a valid reset code, clears the
// failure counter and ends every existing session of the account.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	email := strings.TrimSpace(in.Email)
	if email == "" || strings.TrimSpace(in.Code) == "" || in.NewPassword == "" {
		return newError(KindValidation, "All fields are required")
	}
	if !user.StrongPassword(in.NewPassword) {
		return newError(KindValidation, "Password is not strong enough")
	}
	a, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if err := s.otps.Verify(ctx, a.ID, otpentity.PurposeReset, strings.TrimSpace(in.Code)); err != nil {
		return otpError(err)
	}
	if err := s.users.SetPassword(ctx, a.ID, in.NewPassword); err != nil {
		return unexpected(err)
	}
	if err := s.refresh.RevokeAll(ctx, a.ID); err != nil {
		return unexpected(err)
	}
	s.logger.Infow("password reset", "account", a.ID)
	return nil
}

// GoogleLogin signs in with a Google ID token, creating a verified
// password-less account on first use.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, newError(KindValidation, "ID token is required")
	}
	claims, err := s.google.Verify(ctx, idToken)
	if errors.Is(err, identity.ErrInvalidToken) {
		s.logger.Infow("google token rejected", "err", err)
		return nil, newError(KindValidation, "Invalid Google token")
	}
	if err != nil {
		return nil, unexpected(err)
	}
	a, claimed, err := s.users.FindOrCreateGoogle(ctx, claims.Email, claims.Name, claims.Subject)
	if err != nil {
		return nil, unexpected(err)
	}
	if claimed {
		// codes and sessions issued before the claim belong to whoever registered
		if err := s.otps.RevokeAll(ctx, a.ID); err != nil {
			return nil, unexpected(err)
		}
		if err := s.refresh.RevokeAll(ctx, a.ID); err != nil {
			return nil, unexpected(err)
		}
	}
	return s.startSession(ctx, a)
}

func (s *Service) startSession(ctx context.Context, a *entity.Account) (*Session, error) {
	access, err := s.access.Issue(a.ID, string(a.Role), a.Name)
	if err != nil {
		return nil, unexpected(err)
	}
	plain, _, err := s.refresh.Issue(ctx, a.ID)
	if err != nil {
		return nil, unexpected(err)
	}
	s.logger.Infow("session started", "account", a.ID)
	return &Session{AccessToken: access, RefreshToken: plain, User: a.Public()}, nil
}

func (s *Service) lookup(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, newError(KindNotFound, "User not found")
	}
	if err != nil {
		return nil, unexpected(err)
	}
	return a, nil
}

func otpError(err error) error {
	if errors.Is(err, otp.ErrInvalidCode) {
		return newError(KindValidation, "Invalid or expired OTP")
	}
	return unexpected(err)
}

func recipient(a *entity.Account) otp.Recipient {
	return otp.Recipient{AccountID: a.ID, Email: a.Email, Name: a.Name}
}
