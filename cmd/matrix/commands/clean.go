package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/matrix/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clean",
		Short:   "Remove cache volumes, run reports and run history",
		Args:    cobra.NoArgs,
		PreRunE: c.bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache := c.viper.GetBool("cache")
			runs := c.viper.GetBool("runs")
			all := c.viper.GetBool("all")

			opts := app.CleanOptions{
				SourceDir:  c.viper.GetString("source"),
				ConfigPath: c.viper.GetString("config"),
				Provider:   c.viper.GetString("provider"),
			}

			switch {
			case all:
				opts.Cache = true
				opts.Runs = true
			case cache || runs:
				opts.Cache = cache
				opts.Runs = runs
			default:
				// Default behavior: clean run state
				opts.Runs = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().StringP("provider", "p", "", "Provider whose cache volumes are removed")
	cmd.Flags().Bool("cache", false, "Remove the cache volumes of the configured namespace")
	cmd.Flags().Bool("runs", false, "Remove run reports, sandboxes and run history")
	cmd.Flags().BoolP("all", "a", false, "Remove caches and run state")

	return cmd
}
