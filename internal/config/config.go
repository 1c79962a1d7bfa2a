package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config is read once at startup from the process environment.
type Config struct {
	Port       string
	Production bool
	CORSOrigin string

	Driver   string
	Mongo    database.MongoConfig
	Postgres database.Config
	BoltPath string

	JWTSecret             string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	OTPTTL                time.Duration
	BcryptCost            int
	RiskThreshold         int
	AllowPrivilegedSignup bool

	Email EmailConfig

	GoogleClientID     string
	RecaptchaSecret    string
	RecaptchaVerifyURL string
	OutboundTimeout    time.Duration
	JanitorInterval    time.Duration

	// RateLimitPerMinute of 0 turns per-IP limiting off.
	RateLimitPerMinute int
	RateLimitBurst     int

	Log utilities.Config
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	FromName string
}

// Enabled is false when no SMTP credentials are set.
func (e EmailConfig) Enabled() bool {
	return e.User != "" && e.Pass != ""
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	var errs []error
	r := reader{errs: &errs}

	cfg := Config{
		Port:       r.str("PORT", "3000"),
		Production: strings.EqualFold(os.Getenv("APP_ENV"), "production"),
		CORSOrigin: r.str("CORS_ORIGIN", "http://localhost:5173"),

		Driver:   strings.ToLower(r.str("DB_DRIVER", DriverMongo)),
		Mongo:    database.MongoConfigFromEnv(),
		Postgres: database.ConfigFromEnv(),
		BoltPath: r.str("BOLT_PATH", "authensoft.db"),

		JWTSecret:             os.Getenv("JWT_SECRET"),
		AccessTokenTTL:        r.duration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:       r.duration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OTPTTL:                r.duration("OTP_TTL", 10*time.Minute),
		BcryptCost:            r.integer("BCRYPT_COST", 10),
		RiskThreshold:         r.integer("RISK_THRESHOLD", 3),
		AllowPrivilegedSignup: r.boolean("ALLOW_PRIVILEGED_SIGNUP", false),

		Email: EmailConfig{
			Host:     r.str("EMAIL_HOST", "smtp.gmail.com"),
			Port:     r.integer("EMAIL_PORT", 587),
			User:     os.Getenv("EMAIL_USER"),
			Pass:     os.Getenv("EMAIL_PASS"),
			FromName: r.str("EMAIL_FROM_NAME", "AuthenSoft"),
		},

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		RecaptchaSecret:    os.Getenv("RECAPTCHA_SECRET"),
		RecaptchaVerifyURL: os.Getenv("RECAPTCHA_VERIFY_URL"),
		OutboundTimeout:    r.duration("OUTBOUND_TIMEOUT", 10*time.Second),
		JanitorInterval:    r.duration("JANITOR_INTERVAL", time.Hour),
		RateLimitPerMinute: r.integer("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     r.integer("RATE_LIMIT_BURST", 10),

		Log: utilities.ConfigFromEnv(),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch cfg.Driver {
	case DriverMongo, DriverPostgres, DriverBolt:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of mongo, postgres, bolt", cfg.Driver))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 4..31", cfg.BcryptCost))
	}
	if cfg.RiskThreshold < 1 {
		errs = append(errs, fmt.Errorf("RISK_THRESHOLD must be positive"))
	}
	if cfg.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if cfg.Production && cfg.CORSOrigin == "*" {
		errs = append(errs, errors.New("CORS_ORIGIN cannot be * in production"))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

type reader struct {
	errs *[]error
}

func (r reader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*r.errs = append(*r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r reader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r reader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}
