package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.False(t, cfg.Production)
	assert.Equal(t, "http://localhost:5173", cfg.CORSOrigin)
	assert.Equal(t, DriverMongo, cfg.Driver)
	assert.Equal(t, "authensoft", cfg.Mongo.Database)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 3, cfg.RiskThreshold)
	assert.False(t, cfg.AllowPrivilegedSignup)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.Host)
	assert.Equal(t, 587, cfg.Email.Port)
	assert.False(t, cfg.Email.Enabled())
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("RISK_THRESHOLD", "5")
	t.Setenv("ALLOW_PRIVILEGED_SIGNUP", "true")
	t.Setenv("EMAIL_USER", "noreply@test.com")
	t.Setenv("EMAIL_PASS", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 5, cfg.RiskThreshold)
	assert.True(t, cfg.AllowPrivilegedSignup)
	assert.True(t, cfg.Email.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OTP_TTL", "ten minutes")
	t.Setenv("BCRYPT_COST", "x")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET is required")
	assert.Contains(t, msg, "DB_DRIVER")
	assert.Contains(t, msg, "OTP_TTL")
	assert.Contains(t, msg, "BCRYPT_COST")
}
