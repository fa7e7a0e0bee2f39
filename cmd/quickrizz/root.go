package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bdobrica/quickrizz/internal/quickrizz/app"
	"github.com/bdobrica/quickrizz/internal/quickrizz/config"
)

// cli holds what every subcommand shares once the root has run.
type cli struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "quickrizz",
		Short: "Reply suggestions for dating-app conversations",
		Long: `QuickRizz reads the last few messages of a conversation and suggests
short replies that keep it moving toward a date.

Configuration comes from defaults, an optional YAML file (--config) and
QR_* environment variables, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			v, err := config.NewViper(c.configFile)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			c.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cmd.Name() == "serve")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(c),
		newRecallCmd(c),
		newReindexCmd(c),
		newVersionCmd(),
	)
	return root
}

// setupLogging installs the default slog logger: JSON for the server, text
// for operator commands.
func setupLogging(w io.Writer, level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// open builds the application for a subcommand.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.cfg)
}
