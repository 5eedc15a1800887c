package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.SeedData)
	assert.False(t, cfg.Production())
	assert.Empty(t, cfg.OriginPatterns())
}

func TestLoadServer_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("WS_ORIGINS", "localhost:5173, example.com")

	cfg, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.OriginPatterns())
}

func TestLoadServer_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=from-file.db\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DatabaseURL)
}

func TestLoadServer_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "real-secret")
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestLoadClient(t *testing.T) {
	t.Setenv("SHOP_API_URL", "http://shop.test")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://shop.test", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}
