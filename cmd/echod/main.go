package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/echod/
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flagOverrides holds command-line values that win over every config layer,
// on startup and on reload.
type flagOverrides struct {
	listen string
	dbPath string
	debug  bool
}

func (f flagOverrides) apply(cfg Config) Config {
	if f.listen != "" {
		cfg.ListenAddr = f.listen
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func rootCmd() *cobra.Command {
	var flags flagOverrides

	cmd := &cobra.Command{
		Use:           "echod",
		Short:         "Development remote for echo: workflow API, realtime feed and libsql storage",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := flags.apply(loadConfig())
			d, err := newDaemon(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
			}
			return d.Run(ctx, ln, func() Config { return flags.apply(loadConfig()) })
		},
	}
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Database path (default ~/.echo/echod.db)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "TCP listen address (default :4100)")
	cmd.AddCommand(migrateCmd(&flags))
	return cmd
}

func migrateCmd(flags *flagOverrides) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := flags.apply(loadConfig())
			st, err := openStore(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrated "+cfg.DBPath)
			return nil
		},
	}
}
