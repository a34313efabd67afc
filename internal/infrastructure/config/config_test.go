package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.Browser.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Empty(t, cfg.Pentest.AllowedHosts)
	assert.Equal(t, 100*time.Millisecond, cfg.Pentest.Stagger)
	assert.Equal(t, "none", cfg.Export.Compression)
	assert.Equal(t, 32, cfg.Session.Max)
}

func TestLoadMatchesDefault(t *testing.T) {
	// shells commonly export these
	t.Setenv("PORT", "8000")
	t.Setenv("HOST", "0.0.0.0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	env := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_ENABLED":    "false",
		"BROWSER_ENABLED":       "true",
		"BROWSER_TIMEOUT":       "5s",
		"VIEWPORT_WIDTH":        "1920",
		"FETCH_RETRIES":         "1",
		"PENTEST_ALLOWED_HOSTS": "localhost,*.staging.example.com",
		"PENTEST_STAGGER":       "0s",
		"EXPORT_COMPRESSION":    "zstd",
		"SESSION_MAX":           "4",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Browser.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 800, cfg.Browser.ViewportHeight)
	assert.Equal(t, 1, cfg.Fetch.Retries)
	assert.Equal(t, []string{"localhost", "*.staging.example.com"}, cfg.Pentest.AllowedHosts)
	assert.Zero(t, cfg.Pentest.Stagger)
	assert.Equal(t, "zstd", cfg.Export.Compression)
	assert.Equal(t, 4, cfg.Session.Max)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7000\nLOG_LEVEL=warn\n"), 0o644))
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	// the environment wins over the file
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadOrDefaultOnError(t *testing.T) {
	t.Setenv("SESSION_MAX", "many")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 32, cfg.Session.Max)
}
