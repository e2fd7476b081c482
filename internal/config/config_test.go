package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-secret")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-secret")
	t.Setenv("DB_PASSWORD", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenExpiry)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 60*time.Minute, cfg.Auth.LockoutCap)
	assert.Equal(t, 15*time.Minute, cfg.Auth.CleanupInterval)
	assert.Equal(t, "lax", cfg.Auth.CookieSameSite)
	assert.False(t, cfg.CookiesSecure())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-secret")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "5m")
	t.Setenv("LOCKOUT_THRESHOLD", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
}

func TestLoad_ProductionRequiresStrongSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "too-short-for-prod")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "changeme")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestCookiesSecure_Production(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "a-production-grade-secret-of-32-chars!")
	t.Setenv("DB_PASSWORD", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CookiesSecure())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "app", Password: "pw", Name: "slotbook", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5433 user=app password=pw dbname=slotbook sslmode=require", cfg.DSN())
}
