// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// SecretKey is the 32-byte AES-256 key for credential encryption. Nil when
	// EXIMACCURATE_SECRET_KEY is unset; credential operations then fail.
	SecretKey []byte

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string
	OAuthScopes       []string
	SignatureSecret   string
	AccountURL        string

	RateLimit      int
	MaxConcurrent  int
	RequestTimeout time.Duration
	ImportWorkers  int

	LogLevel slog.Level
}

// HasOAuth reports whether the OAuth client is fully configured. The
// composition root only builds the OAuth exchange when it is.
func (c *Config) HasOAuth() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != "" && c.OAuthRedirectURL != ""
}

// defaultScopes are requested when EXIMACCURATE_OAUTH_SCOPES is unset.
var defaultScopes = []string{"item_adjustment_view", "item_adjustment_save", "item_view"}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. Malformed values fail fast.
// Defaults: EXIMACCURATE_LISTEN_ADDR (127.0.0.1:8080), EXIMACCURATE_DB_PATH
// (eximaccurate.db), EXIMACCURATE_ACCOUNT_URL (https://account.accurate.id),
// EXIMACCURATE_RATE_LIMIT (8), EXIMACCURATE_MAX_CONCURRENT (8),
// EXIMACCURATE_REQUEST_TIMEOUT (30s), EXIMACCURATE_IMPORT_WORKERS (max concurrent),
// EXIMACCURATE_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("EXIMACCURATE_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:            envOr("EXIMACCURATE_DB_PATH", "eximaccurate.db"),
		OAuthClientID:     os.Getenv("EXIMACCURATE_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("EXIMACCURATE_OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:  os.Getenv("EXIMACCURATE_OAUTH_REDIRECT_URL"),
		OAuthScopes:       defaultScopes,
		SignatureSecret:   os.Getenv("EXIMACCURATE_SIGNATURE_SECRET"),
		AccountURL:        strings.TrimRight(envOr("EXIMACCURATE_ACCOUNT_URL", "https://account.accurate.id"), "/"),
		RequestTimeout:    30 * time.Second,
		LogLevel:          slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("EXIMACCURATE_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("EXIMACCURATE_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("EXIMACCURATE_SECRET_KEY must be 64 hex chars (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("EXIMACCURATE_OAUTH_SCOPES"); ok && v != "" {
		var scopes []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				scopes = append(scopes, s)
			}
		}
		if len(scopes) == 0 {
			return nil, fmt.Errorf("EXIMACCURATE_OAUTH_SCOPES has no scopes in %q", v)
		}
		cfg.OAuthScopes = scopes
	}

	var err error
	if cfg.RateLimit, err = positiveInt("EXIMACCURATE_RATE_LIMIT", 8); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = positiveInt("EXIMACCURATE_MAX_CONCURRENT", 8); err != nil {
		return nil, err
	}
	if cfg.ImportWorkers, err = positiveInt("EXIMACCURATE_IMPORT_WORKERS", cfg.MaxConcurrent); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("EXIMACCURATE_REQUEST_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("EXIMACCURATE_REQUEST_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("EXIMACCURATE_REQUEST_TIMEOUT must be positive, got %s", parsed)
		}
		cfg.RequestTimeout = parsed
	}

	if v, ok := os.LookupEnv("EXIMACCURATE_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("EXIMACCURATE_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
