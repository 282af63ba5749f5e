package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	echomcp "github.com/rendis/echo/pkg/mcp"
)

func mcpCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the step editing and run tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.client(ctx)
			if err != nil {
				return err
			}
			srv := echomcp.NewEchoServer(echomcp.EchoServerDeps{
				Session:   a.session,
				Remote:    a.client,
				Feed:      a.feed,
				Validator: a.validator,
				Logger:    o.logger,
			})
			o.logger.Info("mcp server starting", "user", a.session.UserID, "api_url", o.cfg.APIURL)
			return srv.Serve(ctx)
		},
	}
}
