package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/matrix/internal/app"
)

const defaultHistoryLimit = 20

func (c *CLI) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List recent runs",
		Args:    cobra.NoArgs,
		PreRunE: c.bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.History(cmd.Context(), app.HistoryOptions{
				SourceDir:  c.viper.GetString("source"),
				ConfigPath: c.viper.GetString("config"),
				Limit:      c.viper.GetInt("limit"),
			})
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of runs to list, 0 for all")
	return cmd
}
