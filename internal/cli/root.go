// Package cli implements the loadphase command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadphase/internal/log"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "loadphase",
	Short:   "A phase driven HTTP load generator",
	Version: version,
	Long: `loadphase runs benchmarks made of phases. Each phase admits virtual users
executing a scenario according to a load model (at once, always, sequentially,
ramping or constant rate) and phases start, finish and terminate relative to
each other.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		pretty, _ := cmd.Flags().GetBool("log-pretty")
		log.Configure(log.Config{
			Level:  level,
			Pretty: pretty,
			Output: cmd.ErrOrStderr(),
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute runs the root command. main turns the error into the exit code.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	RootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error; default info or $LOG_LEVEL)")
	RootCmd.PersistentFlags().Bool("log-pretty", true, "Human readable log output instead of JSON lines")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(versionCmd)
}
