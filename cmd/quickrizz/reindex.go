package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the recall index and report its size",
		Long: `Reindex reads the recall store from disk and builds the similarity index
the server would use. It fails when the store cannot be decoded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Stop()

			stats, err := a.Service().Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex %s: %w", c.cfg.CommitsPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d keys, %d shingles\n", stats.Keys, stats.Shingles)
			return nil
		},
	}
}
