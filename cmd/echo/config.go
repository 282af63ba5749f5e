package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rendis/echo/pkg/schema"
)

const defaultDebounce = 400 * time.Millisecond

// Config holds the client configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	APIURL    string `json:"api_url"`
	FeedURL   string `json:"feed_url"`
	Token     string `json:"token"`
	TokenFile string `json:"token_file"`
	LogLevel  string `json:"log_level"`
	Debounce  string `json:"debounce"`
}

func defaultConfig() Config {
	return Config{
		APIURL:    "http://localhost:4100/api",
		TokenFile: tokenPath(),
		LogLevel:  "warn",
		Debounce:  defaultDebounce.String(),
	}
}

func echoDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".echo"
	}
	return filepath.Join(home, ".echo")
}

func settingsPath() string {
	return filepath.Join(echoDir(), "settings.json")
}

func tokenPath() string {
	return filepath.Join(echoDir(), "token")
}

func logPath() string {
	return filepath.Join(echoDir(), "echo.log")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("ECHO_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("ECHO_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
	if v := os.Getenv("ECHO_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("ECHO_TOKEN_FILE"); v != "" {
		cfg.TokenFile = v
	}
	if v := os.Getenv("ECHO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ECHO_DEBOUNCE"); v != "" {
		cfg.Debounce = v
	}

	cfg.normalize()
	return cfg
}

// normalize derives the feed URL from the API URL when it is not set.
// The dev remote serves both from one origin: {origin}/api and {origin}/feed.
func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.FeedURL == "" {
		c.FeedURL = strings.TrimSuffix(c.APIURL, "/api") + "/feed"
	}
	c.FeedURL = strings.TrimRight(c.FeedURL, "/")
}

// DebounceWindow parses Debounce, falling back to the default on bad input.
func (c Config) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d <= 0 {
		return defaultDebounce
	}
	return d
}

// BearerToken returns the configured token, reading TokenFile when no token
// is set inline.
func (c Config) BearerToken() (string, error) {
	if t := strings.TrimSpace(c.Token); t != "" {
		return t, nil
	}
	if c.TokenFile != "" {
		data, err := os.ReadFile(c.TokenFile)
		if err == nil {
			if t := strings.TrimSpace(string(data)); t != "" {
				return t, nil
			}
		} else if !os.IsNotExist(err) {
			return "", schema.NewErrorf(schema.ErrCodeUnauthorized, "read token file %s", c.TokenFile).WithCause(err)
		}
	}
	return "", schema.NewError(schema.ErrCodeUnauthorized,
		"no token: set ECHO_TOKEN, pass --token or save one with 'echo token --save'")
}
