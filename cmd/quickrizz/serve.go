package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/quickrizz/common/version"
	"github.com/bdobrica/quickrizz/internal/quickrizz/telemetry"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireAPIKey(); err != nil {
				return err
			}
			if addr != "" {
				c.cfg.HTTPAddr = addr
			}
			slog.Info("starting QuickRizz", version.LogAttrs(), "config", c.cfg)

			shutdownMetrics, err := telemetry.Setup("quickrizz", version.Version, c.cfg.MetricsInterval, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownMetrics(ctx); err != nil {
					slog.Warn("metrics shutdown failed", "err", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http_addr)")
	return cmd
}
