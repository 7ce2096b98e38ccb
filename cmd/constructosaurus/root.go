package main

import (
	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "constructosaurus",
	Short: "Structural quantity extraction from construction drawings",
	Long: `Constructosaurus extracts structural quantities from construction drawing
images using an ensemble of vision models.

Extraction escalates through tiers until the target confidence is met:
  - Single pass with the primary model
  - Multiple passes with consensus voting
  - A second model for independent agreement
  - Full ensemble combining both

Extracted schedules are cross-checked against independently calculated
quantities to flag takeoff discrepancies.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.constructosaurus/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "constructosaurus home directory (default: ~/.constructosaurus)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
