package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fernid/internal/classifier"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, classifier.DefaultDelay, cfg.ScanDelay)
	assert.True(t, cfg.LegacyAdminFullAccess)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.IsProd())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("APP_PORT", "80")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SESSION_TTL_MIN", "30")
	t.Setenv("LEGACY_ADMIN_FULL_ACCESS", "false")
	t.Setenv("SCAN_DELAY", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.LegacyAdminFullAccess)
	assert.Zero(t, cfg.ScanDelay)
	assert.True(t, cfg.IsProd())
}

func TestLoad_Missing(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_SIGNIN_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.General.Capacity)
	assert.Equal(t, 5, rl.SignIn.Capacity)
	assert.Equal(t, 10*time.Second, rl.TTL)

	t.Setenv("RATE_LIMIT_SIGNIN_INTERVAL", "")
	assert.Equal(t, 5*time.Minute, LoadRateLimitConfig().TTL)
}
