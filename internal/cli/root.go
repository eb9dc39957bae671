// Package cli implements the farmsim command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xtrntr/farmduel/internal/config"
	"github.com/xtrntr/farmduel/internal/rules"
)

var configPath string

// NewRootCommand creates the farmsim root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "farmsim",
		Short: "Run and inspect two-farm competitions",
		Long: `farmsim runs farm competitions without the HTTP server and helps
operate the server.

Examples:
  farmsim run --days 10 --seed 42
  farmsim rules --rules rules.yaml
  farmsim hash-password s3cret
  farmsim migrate`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newHashPasswordCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRules returns the rules file given by flag, then by config, then the defaults
func loadRules(cfg *config.Config, path string) (*rules.Rules, error) {
	if path == "" {
		path = cfg.Simulation.RulesPath
	}
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}
