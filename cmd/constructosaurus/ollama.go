package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/config"
	"github.com/dajtuba/constructosaurus-sub001/internal/home"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
)

var ollamaCmd = &cobra.Command{
	Use:   "ollama",
	Short: "Manage the Ollama runtime container",
	Long: `Manage the Ollama runtime container lifecycle.

Ollama serves the vision models that extraction runs against. The runtime
runs in a Docker container with model weights persisted to
~/.constructosaurus/ollama/.

Examples:
  constructosaurus ollama start   # Start the runtime container
  constructosaurus ollama stop    # Stop the container (weights preserved)
  constructosaurus ollama status  # Check container status
  constructosaurus ollama logs    # View container logs`,
}

var ollamaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Ollama runtime container",
	Long: `Start the Ollama runtime container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Model weights are persisted to ~/.constructosaurus/ollama/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting Ollama...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start Ollama: %w", err)
		}

		fmt.Printf("Ollama is running at %s\n", mgr.URL())
		return nil
	},
}

var ollamaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Ollama runtime container",
	Long: `Stop the Ollama runtime container.

This stops the container but preserves downloaded model weights. Use
'constructosaurus ollama start' to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Ollama...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop Ollama: %w", err)
		}

		fmt.Println("Ollama stopped")
		return nil
	},
}

var ollamaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Ollama container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case ollama.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			// Try health check
			client := ollama.NewClient(mgr.URL())
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
				if version, err := client.Version(ctx); err == nil {
					fmt.Printf("Version: %s\n", version)
				}
			}
		case ollama.StatusStopped:
			fmt.Printf("Status: %s (use 'constructosaurus ollama start' to start)\n", status)
		case ollama.StatusNotFound:
			fmt.Printf("Status: %s (use 'constructosaurus ollama start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var (
	logsTail   string
	logsFollow bool
)

var ollamaLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Ollama container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ollamaRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Ollama container",
	Long: `Remove the Ollama container.

This stops and removes the container. Model weights in
~/.constructosaurus/ollama/ are NOT deleted - only the container is
removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing Ollama container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Ollama container removed (model weights preserved)")
		return nil
	},
}

var ollamaWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Ollama to be ready",
	Long: `Wait for Ollama to be ready to accept connections.

This is useful in scripts to ensure the runtime is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getOllamaManager(h)
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for Ollama (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("Ollama not ready: %w", err)
		}

		fmt.Println("Ollama is ready")
		return nil
	},
}

func init() {
	// Add subcommands
	ollamaCmd.AddCommand(ollamaStartCmd)
	ollamaCmd.AddCommand(ollamaStopCmd)
	ollamaCmd.AddCommand(ollamaStatusCmd)
	ollamaCmd.AddCommand(ollamaLogsCmd)
	ollamaCmd.AddCommand(ollamaRemoveCmd)
	ollamaCmd.AddCommand(ollamaWaitCmd)

	// Logs flags
	ollamaLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	ollamaLogsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (not yet implemented)")

	// Wait flags
	ollamaWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for Ollama")

	// Add to root
	rootCmd.AddCommand(ollamaCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getOllamaManager creates a DockerManager addressing the same container the
// server manages: name, image and port come from config, weights go to the
// home runtime directory.
func getOllamaManager(h *home.Dir) (*ollama.DockerManager, error) {
	cfgMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cfgMgr.Get()

	return ollama.NewDockerManager(ollama.DockerConfig{
		ContainerName: cfg.Ollama.ContainerName,
		HomePath:      h.Path(),
		Image:         cfg.Ollama.Image,
		HostPort:      cfg.Ollama.Port,
		ModelsPath:    h.RuntimePath(),
	})
}
