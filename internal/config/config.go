// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Passphrase unlocks the vault key. It is never logged.
	Passphrase string

	BreachAPIURL  string
	BreachTimeout time.Duration
	BreachPadding bool

	// IconURL is the logo service base URL; empty disables icon lookup.
	IconURL     string
	IconTimeout time.Duration

	// TempDir is where browser stores are copied before reading; empty means os.TempDir.
	TempDir string

	// Browsers maps each importable browser to its configured store locations.
	// Browsers with no locations set are absent.
	Browsers map[model.Browser]model.BrowserPaths
}

// HasPassphrase reports whether the vault can be unlocked. Without a
// passphrase the process still serves requests, but every operation that
// needs the vault key fails with driven.ErrKeySourceUnavailable.
func (c *Config) HasPassphrase() bool {
	return c.Passphrase != ""
}

// LogValue implements slog.LogValuer so the config can be logged at startup
// without exposing the passphrase.
func (c *Config) LogValue() slog.Value {
	browsers := make([]string, 0, len(c.Browsers))
	for _, b := range model.ImportableBrowsers {
		if _, ok := c.Browsers[b]; ok {
			browsers = append(browsers, string(b))
		}
	}

	return slog.GroupValue(
		slog.String("listen_addr", c.ListenAddr),
		slog.String("db_path", c.DBPath),
		slog.String("log_level", c.LogLevel.String()),
		slog.Bool("passphrase_set", c.HasPassphrase()),
		slog.String("breach_api_url", c.BreachAPIURL),
		slog.Duration("breach_timeout", c.BreachTimeout),
		slog.Bool("breach_padding", c.BreachPadding),
		slog.String("icon_url", c.IconURL),
		slog.Any("browsers", browsers),
	)
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Defaults: CREDVAULT_LISTEN_ADDR (127.0.0.1:8080),
// CREDVAULT_DB_PATH (credvault.db), CREDVAULT_LOG_LEVEL (info),
// CREDVAULT_BREACH_API_URL (https://api.pwnedpasswords.com),
// CREDVAULT_BREACH_TIMEOUT (10s), CREDVAULT_BREACH_PADDING (true),
// CREDVAULT_ICON_URL (https://logo.clearbit.com), CREDVAULT_ICON_TIMEOUT (3s).
// Browser store locations are read from the variables named by model.Browser.Env.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envOr("CREDVAULT_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:        envOr("CREDVAULT_DB_PATH", "credvault.db"),
		Passphrase:    os.Getenv("CREDVAULT_PASSPHRASE"),
		BreachAPIURL:  envOr("CREDVAULT_BREACH_API_URL", "https://api.pwnedpasswords.com"),
		BreachTimeout: 10 * time.Second,
		BreachPadding: true,
		IconURL:       envOr("CREDVAULT_ICON_URL", "https://logo.clearbit.com"),
		IconTimeout:   3 * time.Second,
		TempDir:       os.Getenv("CREDVAULT_TEMP_DIR"),
		Browsers:      make(map[model.Browser]model.BrowserPaths),
	}

	if v, ok := os.LookupEnv("CREDVAULT_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("CREDVAULT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	var err error
	if cfg.BreachTimeout, err = positiveDuration("CREDVAULT_BREACH_TIMEOUT", cfg.BreachTimeout); err != nil {
		return nil, err
	}
	if cfg.IconTimeout, err = positiveDuration("CREDVAULT_ICON_TIMEOUT", cfg.IconTimeout); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("CREDVAULT_BREACH_PADDING"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CREDVAULT_BREACH_PADDING has invalid boolean %q: %w", v, err)
		}
		cfg.BreachPadding = parsed
	}

	if err := validateBaseURL("CREDVAULT_BREACH_API_URL", cfg.BreachAPIURL); err != nil {
		return nil, err
	}
	if cfg.IconURL != "" {
		if err := validateBaseURL("CREDVAULT_ICON_URL", cfg.IconURL); err != nil {
			return nil, err
		}
	}

	for _, browser := range model.ImportableBrowsers {
		env, _ := browser.Env()
		paths := model.BrowserPaths{
			LoginData:  os.Getenv(env.LoginData),
			LocalState: os.Getenv(env.LocalState),
		}
		if paths.LoginData != "" || paths.LocalState != "" {
			cfg.Browsers[browser] = paths
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}

func validateBaseURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s has invalid URL %q: %w", key, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
