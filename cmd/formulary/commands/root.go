package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonOutput bool

	// buildVersion is stamped at link time and reported in traces.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "formulary",
		Short: "Formulary - Declarative package installation engine",
		Long: `Formulary installs packages from declarative formula descriptors.

A formula pins a source archive by digest, names its runtime and its tiered
dependencies, and carries a post-install smoke test. Formulary resolves the
dependency graph into a deterministic install plan, builds an isolated
environment per package, and drives each step through its install and test
lifecycle.

Features:
  - Typed YAML formulas validated via CUE schemas
  - Tiered dependencies (required, recommended, optional, build)
  - Deterministic plan ordering with cycle detection
  - Isolated per-package environments
  - Conditional post-install caveats
  - Policy enforcement (OPA/rego) and SQLite run history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
