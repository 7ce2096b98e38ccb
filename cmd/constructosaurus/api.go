package main

import (
	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running constructosaurus server via HTTP.

These commands require a running server (constructosaurus serve).
Use --server to specify a custom server URL.

Examples:
  constructosaurus api health                    # Check server health
  constructosaurus api extract page4.png         # Extract quantities from a drawing
  constructosaurus api models list               # List configured models`,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Vision model management commands",
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Extraction cache commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Inference call tracking commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Extraction and cross-checking at top level
	apiCmd.AddCommand((&endpoints.ExtractEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.CrosscheckEndpoint{}).Command(getServerURL))

	// Models as subcommand group
	modelsCmd.AddCommand((&endpoints.ListModelsEndpoint{}).Command(getServerURL))
	modelsCmd.AddCommand((&endpoints.PullModelEndpoint{}).Command(getServerURL))

	// Cache as subcommand group
	cacheCmd.AddCommand((&endpoints.CacheStatsEndpoint{}).Command(getServerURL))
	cacheCmd.AddCommand((&endpoints.CachePurgeEndpoint{}).Command(getServerURL))

	// Metrics as subcommand group
	metricsCmd.AddCommand((&endpoints.MetricsSummaryEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(modelsCmd)
	apiCmd.AddCommand(cacheCmd)
	apiCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(apiCmd)
}
