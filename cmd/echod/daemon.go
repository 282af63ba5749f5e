package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rendis/echo/internal/logging"
	"github.com/rendis/echo/internal/realtime"
	"github.com/rendis/echo/internal/server"
	"github.com/rendis/echo/internal/store"
	"github.com/rendis/echo/internal/validation"
)

const shutdownTimeout = 5 * time.Second

// daemon owns the store, the snapshot hub and the live HTTP handler.
type daemon struct {
	logger *slog.Logger
	store  *store.LibSQLStore
	live   *liveHandler
}

func openStore(ctx context.Context, path string) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newDaemon(ctx context.Context, cfg Config, logOut io.Writer) (*daemon, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret is required: set ECHO_JWT_SECRET or jwt_secret in settings.json")
	}
	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	hub := realtime.NewHub(realtime.WithLoader(server.NewLoader(st)))

	d := &daemon{logger: logging.New(logOut, cfg.LogLevel), store: st}
	d.live, err = newLiveHandler(cfg, func(c Config) (http.Handler, error) {
		if c.JWTSecret == "" {
			return nil, errors.New("jwt_secret must not be empty")
		}
		return server.New(server.Deps{
			Store:     st,
			Hub:       hub,
			Secret:    []byte(c.JWTSecret),
			Validator: v,
			Logger:    logging.New(logOut, c.LogLevel),
			Heartbeat: c.HeartbeatInterval(),
		}).Handler(), nil
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the database.
func (d *daemon) Close() error {
	return d.store.Close()
}

// Run serves on ln until ctx is cancelled. Request contexts derive from the
// serve context, so open feed streams end on shutdown instead of holding it
// up. reload, when set, is called on SIGHUP to re-read the configuration.
func (d *daemon) Run(ctx context.Context, ln net.Listener, reload func() Config) error {
	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           d.live,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	d.logger.Info("echod listening", "addr", ln.Addr().String(), "db", d.live.Config().DBPath)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		d.logger.Info("echod stopped")
		return nil
	})
	if reload != nil {
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					d.reload(reload())
				}
			}
		})
	}
	return g.Wait()
}

// reload applies a re-read configuration to the live handler.
func (d *daemon) reload(cfg Config) {
	diff, err := d.live.Apply(cfg)
	if err != nil {
		d.logger.Error("config reload failed", "error", err)
		return
	}
	if len(diff.RestartNeeded) > 0 {
		d.logger.Warn("config changes need a restart", "fields", diff.RestartNeeded)
	}
	if diff.HandlerChanged {
		d.logger.Info("config reloaded", "log_level", cfg.LogLevel)
	}
}
