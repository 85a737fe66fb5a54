package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/matrix/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [versions...]",
		Short:   "Build every version of the matrix",
		Long:    "Build every version of the matrix. Versions given as arguments replace the configured list.",
		Args:    cobra.ArbitraryArgs,
		PreRunE: c.bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := c.viper
			return c.app.Run(cmd.Context(), app.RunOptions{
				SourceDir:   v.GetString("source"),
				ConfigPath:  v.GetString("config"),
				Versions:    args,
				Provider:    v.GetString("provider"),
				FailFast:    v.GetBool("fail-fast"),
				Parallelism: v.GetInt("parallelism"),
				OutputDir:   v.GetString("output"),
				NoLint:      v.GetBool("no-lint"),
				Publish:     v.GetBool("publish"),
				JSONLogs:    v.GetBool("json-logs"),
				TTY:         v.GetBool("tty"),
			})
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().StringP("provider", "p", "", "Environment provider: dagger, docker or local")
	cmd.Flags().Bool("fail-fast", false, "Cancel the remaining entries after the first failure")
	cmd.Flags().IntP("parallelism", "j", 0, "Maximum number of entries built at once (default: number of CPUs)")
	cmd.Flags().StringP("output", "o", "", "Directory for the report tree (default: .matrix/runs/<run id>)")
	cmd.Flags().Bool("no-lint", false, "Skip optional steps such as lint")
	cmd.Flags().Bool("publish", false, "Upload exported artifacts to the configured object store")
	cmd.Flags().Bool("json-logs", false, "Write logs as JSON")
	cmd.Flags().Bool("tty", false, "Run local commands under a pseudo-terminal")
	return cmd
}
