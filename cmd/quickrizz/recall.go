package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRecallCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recall <text>",
		Short: "Show the stored replies that would be recalled for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Stop()

			text := strings.Join(args, " ")
			lines, matches := a.Service().Recall(text)
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no similar messages")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%.3f  %s\n", m.Score, m.Key)
			}
			fmt.Fprintln(out)
			for _, l := range lines {
				fmt.Fprintf(out, "- %s\n", l)
			}
			return nil
		},
	}
}
