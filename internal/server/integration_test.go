package server

import (
	"context"
	"testing"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
	"github.com/dajtuba/constructosaurus-sub001/internal/testutil"
)

// TestServer_ContextCancellation tests that the server properly handles
// context cancellation mid-run. Requires Docker.
func TestServer_ContextCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testutil.NewServerConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	srv, err := New(Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		HomePath: cfg.HomePath,
		OllamaConfig: ollama.DockerConfig{
			ContainerName: cfg.OllamaConfig.ContainerName,
			HostPort:      cfg.OllamaConfig.HostPort,
			Labels:        cfg.OllamaConfig.Labels,
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	if err := testutil.WaitForServer(cfg.URL(), 3*time.Minute); err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	// Cancel context immediately
	serverCancel()

	if err := testutil.WaitForShutdown(serverErr, 60*time.Second); err != nil {
		t.Fatalf("server did not respond to context cancellation: %v", err)
	}

	// Verify the runtime container is stopped
	mgr, err := ollama.NewDockerManager(ollama.DockerConfig{
		ContainerName: cfg.OllamaConfig.ContainerName,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	status, err := mgr.Status(ctx)
	if err != nil {
		t.Fatalf("failed to get status: %v", err)
	}

	if status == ollama.StatusRunning {
		t.Error("runtime still running after context cancellation")
		_ = mgr.Stop(ctx)
	}
}

// TestServer_DoubleStart tests that starting a running server returns an
// error. Requires Docker.
func TestServer_DoubleStart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testutil.NewServerConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	srv, err := New(Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		HomePath: cfg.HomePath,
		OllamaConfig: ollama.DockerConfig{
			ContainerName: cfg.OllamaConfig.ContainerName,
			HostPort:      cfg.OllamaConfig.HostPort,
			Labels:        cfg.OllamaConfig.Labels,
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	if err := testutil.WaitForServer(cfg.URL(), 3*time.Minute); err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	// Second Start on the same server must refuse
	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	serverCancel()
	if err := testutil.WaitForShutdown(serverErr, 60*time.Second); err != nil {
		t.Fatalf("server did not shut down: %v", err)
	}
}
