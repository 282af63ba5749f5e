package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds the development remote configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	JWTSecret  string `json:"jwt_secret"`
	LogLevel   string `json:"log_level"`
	Heartbeat  string `json:"heartbeat"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4100",
		DBPath:     filepath.Join(echoDir(), "echod.db"),
		LogLevel:   "info",
		Heartbeat:  "15s",
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

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("ECHO_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ECHO_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ECHO_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ECHO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ECHO_HEARTBEAT"); v != "" {
		cfg.Heartbeat = v
	}
	return cfg
}

// HeartbeatInterval parses Heartbeat; zero lets the server pick its default.
func (c Config) HeartbeatInterval() time.Duration {
	d, err := time.ParseDuration(c.Heartbeat)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	HandlerChanged bool
	RestartNeeded  []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel || old.JWTSecret != new.JWTSecret || old.Heartbeat != new.Heartbeat {
		d.HandlerChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	return d
}
