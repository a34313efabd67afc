package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Pentest   PentestConfig
	Export    ExportConfig
	Session   SessionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// AllowedOrigins feeds CORS; "*" allows any origin.
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BrowserConfig controls the live playwright source.
type BrowserConfig struct {
	Enabled           bool          `envconfig:"BROWSER_ENABLED" default:"false"`
	Headless          bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	Timeout           time.Duration `envconfig:"BROWSER_TIMEOUT" default:"30s"`
	ViewportWidth     int           `envconfig:"VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight    int           `envconfig:"VIEWPORT_HEIGHT" default:"800"`
	UserAgent         string        `envconfig:"BROWSER_USER_AGENT"`
	IgnoreHTTPSErrors bool          `envconfig:"BROWSER_IGNORE_HTTPS_ERRORS" default:"false"`
}

// FetchConfig controls the plain HTTP client.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	Retries   int           `envconfig:"FETCH_RETRIES" default:"3"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"PageLens/1.0"`
	RateLimit float64       `envconfig:"FETCH_RATE_LIMIT" default:"5"`
}

// PentestConfig controls the security checklist.
type PentestConfig struct {
	// AllowedHosts are host globs active probes may contact. Empty allows
	// none.
	AllowedHosts []string      `envconfig:"PENTEST_ALLOWED_HOSTS"`
	Stagger      time.Duration `envconfig:"PENTEST_STAGGER" default:"100ms"`
}

// ExportConfig controls export and clipboard output.
type ExportConfig struct {
	Dir          string `envconfig:"EXPORT_DIR" default:"exports"`
	ClipboardDir string `envconfig:"CLIPBOARD_DROP_DIR" default:"clipboard"`
	// Compression is none, gzip or zstd.
	Compression string `envconfig:"EXPORT_COMPRESSION" default:"none"`
}

// SessionConfig bounds capture sessions.
type SessionConfig struct {
	Max int `envconfig:"SESSION_MAX" default:"32"`
}

// Load loads configuration from environment variables. Files named in
// envFiles are loaded first without overriding variables already set; a
// missing file is skipped.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns the
// defaults.
func LoadOrDefault(envFiles ...string) *Config {
	cfg, err := Load(envFiles...)
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Browser: BrowserConfig{
			Enabled:        false,
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Retries:   3,
			UserAgent: "PageLens/1.0",
			RateLimit: 5,
		},
		Pentest: PentestConfig{
			Stagger: 100 * time.Millisecond,
		},
		Export: ExportConfig{
			Dir:          "exports",
			ClipboardDir: "clipboard",
			Compression:  "none",
		},
		Session: SessionConfig{
			Max: 32,
		},
	}
}
