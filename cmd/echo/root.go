package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/api"
	"github.com/rendis/echo/internal/logging"
	"github.com/rendis/echo/internal/realtime"
	"github.com/rendis/echo/internal/session"
	"github.com/rendis/echo/internal/validation"
)

// requestTimeout bounds one-shot commands: a read waits for the first feed
// snapshot and a write for the remote's reply.
const requestTimeout = 30 * time.Second

// options carries root flag values and the lazily built client stack.
type options struct {
	apiURL string
	token  string
	debug  bool

	cfg    Config
	logger *slog.Logger

	app *app
}

// app is the client stack every remote command runs on.
type app struct {
	session   *session.Session
	client    *api.Client
	feed      *realtime.Feed
	validator *validation.JSONSchemaValidator
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "echo",
		Short:         "Edit browser-automation workflows and follow their runs",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			o.cfg = loadConfig()
			if o.apiURL != "" {
				o.cfg.APIURL = o.apiURL
				o.cfg.FeedURL = ""
				o.cfg.normalize()
			}
			if o.token != "" {
				o.cfg.Token = o.token
			}
			if o.debug {
				o.cfg.LogLevel = "debug"
			}
			o.logger = logging.New(cmd.ErrOrStderr(), o.cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&o.apiURL, "api-url", "", "Remote API base URL (default from config)")
	root.PersistentFlags().StringVar(&o.token, "token", "", "Bearer ID token (default from config)")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "Enable debug logging")

	root.AddCommand(stepsCmd(o))
	root.AddCommand(createCmd(o))
	root.AddCommand(activateCmd(o))
	root.AddCommand(deleteCmd(o))
	root.AddCommand(runCmd(o))
	root.AddCommand(editCmd(o))
	root.AddCommand(mcpCmd(o))
	root.AddCommand(tokenCmd(o))
	return root
}

// client builds the session, API client and feed on first use. ctx scopes
// the HTTP client's token source, so it should outlive the command.
func (o *options) client(ctx context.Context) (*app, error) {
	if o.app != nil {
		return o.app, nil
	}
	raw, err := o.cfg.BearerToken()
	if err != nil {
		return nil, err
	}
	sess, err := session.FromIDToken(raw)
	if err != nil {
		return nil, err
	}
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	hc := sess.HTTPClient(ctx)
	o.app = &app{
		session:   sess,
		client:    api.NewClient(o.cfg.APIURL, hc, o.logger),
		feed:      realtime.NewFeed(realtime.NewSSEClient(o.cfg.FeedURL, hc, o.logger), o.logger),
		validator: v,
	}
	return o.app, nil
}

// fileLogger redirects logging to ~/.echo/echo.log so a full-screen view
// keeps the terminal clean. The returned close func is never nil.
func (o *options) fileLogger() (*slog.Logger, func()) {
	path := logPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return logging.New(io.Discard, o.cfg.LogLevel), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return logging.New(io.Discard, o.cfg.LogLevel), func() {}
	}
	return logging.New(f, o.cfg.LogLevel), func() { _ = f.Close() }
}

// timeout bounds a one-shot command.
func timeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}
