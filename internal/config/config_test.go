package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsDev())
	assert.Equal(t, 168*time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, time.Second, cfg.JWT.RefreshTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Verification.EmailTTL)
	assert.Equal(t, 10*time.Minute, cfg.Verification.PhoneOTPTTL)
	assert.Equal(t, 5*time.Minute, cfg.Verification.EmailCooldown)
	assert.Equal(t, 2*time.Minute, cfg.Verification.PhoneCooldown)
	assert.Equal(t, 5, cfg.Verification.OTPMaxAttempts)
	assert.Equal(t, 3, cfg.RateLimit.LoginPerEmail)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Contains(t, cfg.JWT.Keys, cfg.JWT.ActiveKID)
}

func TestParseKeyRing(t *testing.T) {
	t.Setenv("JWT_ACTIVE_KID", "2026b")
	t.Setenv("JWT_KEYS", "2026a:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa,2026b:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	t.Setenv("JWT_RETIRED_KIDS", "2025z")

	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "2026b", cfg.JWT.ActiveKID)
	assert.Len(t, cfg.JWT.Keys, 2)
	assert.Equal(t, []string{"2025z"}, cfg.JWT.RetiredKIDs)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := &Config{AppMode: "staging"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresKeysInProd(t *testing.T) {
	cfg := &Config{AppMode: "prod", Verification: VerificationConfig{OTPMaxAttempts: 5}}
	assert.Error(t, cfg.Validate())
}

func TestOriginAllowed(t *testing.T) {
	cfg := &Config{AppMode: "prod", AllowedOrigins: "https://a.example, https://b.example"}
	assert.True(t, cfg.OriginAllowed("https://b.example"))
	assert.False(t, cfg.OriginAllowed("https://evil.example"))

	dev := &Config{AppMode: "dev"}
	assert.True(t, dev.OriginAllowed("http://localhost:5173"))
}
