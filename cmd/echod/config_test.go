package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"ECHO_LISTEN_ADDR", "ECHO_DB_PATH", "ECHO_JWT_SECRET", "ECHO_LOG_LEVEL", "ECHO_HEARTBEAT"} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoadConfig_Layers(t *testing.T) {
	home := isolateHome(t)

	cfg := loadConfig()
	assert.Equal(t, ":4100", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(home, ".echo", "echod.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval())

	dir := filepath.Join(home, ".echo")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"),
		[]byte(`{"listen_addr": ":5000", "jwt_secret": "from-file", "api_url": "ignored by the remote"}`), 0o600))

	cfg = loadConfig()
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, "from-file", cfg.JWTSecret)

	t.Setenv("ECHO_JWT_SECRET", "from-env")
	t.Setenv("ECHO_HEARTBEAT", "bogus")
	cfg = loadConfig()
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Zero(t, cfg.HeartbeatInterval())
}

func TestFlagOverrides(t *testing.T) {
	cfg := flagOverrides{listen: "127.0.0.1:0", dbPath: "/tmp/x.db", debug: true}.apply(defaultConfig())
	assert.Equal(t, "127.0.0.1:0", cfg.ListenAddr)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)

	same := flagOverrides{}.apply(Config{ListenAddr: ":1", LogLevel: "warn"})
	assert.Equal(t, Config{ListenAddr: ":1", LogLevel: "warn"}, same)
}

func TestDiffConfigs(t *testing.T) {
	base := Config{ListenAddr: ":4100", DBPath: "a.db", JWTSecret: "s", LogLevel: "info", Heartbeat: "15s"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		handler bool
		restart []string
	}{
		{"no change", func(*Config) {}, false, nil},
		{"log level", func(c *Config) { c.LogLevel = "debug" }, true, nil},
		{"secret", func(c *Config) { c.JWTSecret = "t" }, true, nil},
		{"heartbeat", func(c *Config) { c.Heartbeat = "1s" }, true, nil},
		{"listen and db", func(c *Config) { c.ListenAddr = ":1"; c.DBPath = "b.db" }, false, []string{"listen_addr", "db_path"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next := base
			tc.mutate(&next)
			d := diffConfigs(base, next)
			assert.Equal(t, tc.handler, d.HandlerChanged)
			assert.Equal(t, tc.restart, d.RestartNeeded)
		})
	}
}
