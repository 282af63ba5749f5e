package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/echo/internal/session"
)

func TestLiveHandler_Apply(t *testing.T) {
	var built []Config
	build := func(c Config) (http.Handler, error) {
		if c.JWTSecret == "" {
			return nil, errors.New("empty secret")
		}
		built = append(built, c)
		level := c.LogLevel
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, level)
		}), nil
	}
	base := Config{ListenAddr: ":4100", DBPath: "a.db", JWTSecret: "s", LogLevel: "info"}
	live, err := newLiveHandler(base, build)
	require.NoError(t, err)
	assert.Equal(t, "info", serveBody(t, live))

	d, err := live.Apply(base)
	require.NoError(t, err)
	assert.False(t, d.HandlerChanged)
	assert.Len(t, built, 1)

	next := base
	next.LogLevel = "debug"
	next.ListenAddr = ":9999"
	d, err = live.Apply(next)
	require.NoError(t, err)
	assert.True(t, d.HandlerChanged)
	assert.Equal(t, []string{"listen_addr"}, d.RestartNeeded)
	assert.Equal(t, "debug", serveBody(t, live))
	assert.Equal(t, ":4100", live.Config().ListenAddr)

	broken := next
	broken.JWTSecret = ""
	_, err = live.Apply(broken)
	assert.Error(t, err)
	assert.Equal(t, "debug", serveBody(t, live))
	assert.Equal(t, "s", live.Config().JWTSecret)
}

func serveBody(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Body.String()
}

func TestNewDaemon_RequiresSecret(t *testing.T) {
	_, err := newDaemon(context.Background(), Config{DBPath: filepath.Join(t.TempDir(), "x.db")}, io.Discard)
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestDaemon_ServeAndShutdown(t *testing.T) {
	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "data", "echod.db"),
		JWTSecret:  "daemon-secret",
		LogLevel:   "error",
		Heartbeat:  "50ms",
	}
	d, err := newDaemon(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer d.Close()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, ln, nil) }()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tok, err := session.Mint([]byte(cfg.JWTSecret), "u1", time.Hour)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, base+"/feed/workflows/missing", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, http.StatusOK, stream.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("daemon did not stop with an open feed stream")
	}
}

func TestDaemon_Reload(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "echod.db"), JWTSecret: "one", LogLevel: "error"}
	d, err := newDaemon(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer d.Close()

	next := cfg
	next.JWTSecret = "two"
	d.reload(next)
	assert.Equal(t, "two", d.live.Config().JWTSecret)

	bad := next
	bad.JWTSecret = ""
	d.reload(bad)
	assert.Equal(t, "two", d.live.Config().JWTSecret)
}
