package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/config"
	"github.com/dajtuba/constructosaurus-sub001/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the constructosaurus server",
	Long: `Start the constructosaurus HTTP server.

This starts both the HTTP API server and the Ollama runtime container,
then pulls any configured models that are missing. When the server shuts
down (via Ctrl+C or SIGTERM), the managed runtime is also stopped.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (runtime health and model availability)

Examples:
  constructosaurus serve                    # Start on default port 8080
  constructosaurus serve --port 3000        # Start on custom port
  constructosaurus serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Load config, watching for model weight changes
		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		logger := newLogger(cfgMgr.Get().Logging)

		// Create server
		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			HomePath:      homeDir,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// newLogger builds the process logger from the logging config section.
func newLogger(cfg config.LoggingCfg) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
