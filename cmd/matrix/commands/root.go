// Package commands implements the CLI commands for the matrix build runner.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.trai.ch/matrix/internal/app"
	"go.trai.ch/matrix/internal/build"
	"go.trai.ch/zerr"
)

// EnvPrefix prefixes the environment variables that mirror command flags.
const EnvPrefix = "MATRIX"

// CLI represents the command line interface for matrix.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	viper   *viper.Viper
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, opts app.RunOptions) error
	History(ctx context.Context, opts app.HistoryOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "matrix",
		Short:         "Run one build pipeline across many runtime versions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
		viper:   v,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newHistoryCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// bindFlags lets MATRIX_<FLAG> environment variables fill flags that were not set.
func (c *CLI) bindFlags(cmd *cobra.Command, _ []string) error {
	if err := c.viper.BindPFlags(cmd.Flags()); err != nil {
		return zerr.Wrap(err, "failed to bind flags")
	}
	return nil
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", ".", "Source directory to build")
	cmd.Flags().StringP("config", "c", "", "Configuration file (default: nearest matrix.yaml)")
}
