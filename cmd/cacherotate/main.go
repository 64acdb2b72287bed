// The cacherotate command drives auth token rotation and secret attachment
// manually, outside the Lambda triggers. Useful for operating on LocalStack,
// recovering from a stuck rotation, or exercising a single step.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/cacherotate/cmd/cacherotate/commands"
	"github.com/systmms/cacherotate/internal/config"
	"github.com/systmms/cacherotate/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		debug    bool
		endpoint string
	)

	rt := &commands.Runtime{
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd := &cobra.Command{
		Use:   "cacherotate",
		Short: "Rotate ElastiCache auth tokens stored in Secrets Manager",
		Long: `cacherotate rotates the auth token of an ElastiCache replication group
through the four-step Secrets Manager rotation protocol, and attaches a
group's connection metadata to a secret.`,
		Version: rt.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.Config = config.Load()
			if debug {
				rt.Config.LogLevel = "debug"
			}
			if endpoint != "" {
				rt.Config.SecretsManagerEndpoint = endpoint
			}
			rt.Logger = logging.NewConsole(rt.Config.LogLevel)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Secrets Manager endpoint override (e.g. LocalStack)")

	rootCmd.AddCommand(
		commands.NewRotateCommand(rt),
		commands.NewAttachCommand(rt),
	)

	return rootCmd.Execute()
}
