package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status      string `json:"status"`
	Runtime     string `json:"runtime,omitempty"`
	ModelsReady int    `json:"models_ready,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Runtime: "healthy"}

	client := svcctx.OllamaFrom(r.Context())
	if client == nil {
		resp.Status = "degraded"
		resp.Runtime = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if err := client.HealthCheck(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Runtime = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		ready, err := registry.ReadyModels(r.Context())
		if err == nil {
			resp.ModelsReady = len(ready)
		}
		if resp.ModelsReady == 0 {
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes runtime and models)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			if resp.Runtime != "" {
				fmt.Printf("Runtime: %s\n", resp.Runtime)
			}
			fmt.Printf("Models:  %d ready\n", resp.ModelsReady)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server string       `json:"server"`
	Models ModelsStatus `json:"models"`
	Ollama OllamaStatus `json:"ollama"`
	Cache  *CacheStatus `json:"cache,omitempty"`
}

// ModelsStatus shows configured model aliases and which are loaded on the
// runtime.
type ModelsStatus struct {
	Configured []string `json:"configured"`
	Ready      []string `json:"ready"`
}

// OllamaStatus shows the runtime container and health status.
type OllamaStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
	URL       string `json:"url"`
	Version   string `json:"version,omitempty"`
}

// CacheStatus is the cache slice of the status response.
type CacheStatus struct {
	Enabled bool  `json:"enabled"`
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// OllamaManager is set by the server since it's not in Services. Nil
	// when the runtime is externally managed.
	OllamaManager *ollama.DockerManager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server: "running",
		Models: ModelsStatus{Configured: []string{}, Ready: []string{}},
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry != nil {
		resp.Models.Configured = registry.ListVision()
		if ready, err := registry.ReadyModels(r.Context()); err == nil {
			for _, client := range ready {
				resp.Models.Ready = append(resp.Models.Ready, client.Name())
			}
		}
	}

	if e.OllamaManager != nil {
		status, err := e.OllamaManager.Status(r.Context())
		if err != nil {
			resp.Ollama.Container = "error"
		} else {
			resp.Ollama.Container = string(status)
		}
		resp.Ollama.URL = e.OllamaManager.URL()
	} else {
		resp.Ollama.Container = "unmanaged"
	}

	client := svcctx.OllamaFrom(r.Context())
	if client != nil {
		resp.Ollama.URL = client.URL()
		if err := client.HealthCheck(r.Context()); err != nil {
			resp.Ollama.Health = "unhealthy"
		} else {
			resp.Ollama.Health = "healthy"
			if v, err := client.Version(r.Context()); err == nil {
				resp.Ollama.Version = v
			}
		}
	} else {
		resp.Ollama.Health = "not_initialized"
	}

	if c := svcctx.CacheFrom(r.Context()); c != nil {
		stats := c.Stats()
		resp.Cache = &CacheStatus{
			Enabled: true,
			Entries: stats.Entries,
			Hits:    stats.Hits,
			Misses:  stats.Misses,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Ollama:\n")
			fmt.Printf("  Container: %s\n", resp.Ollama.Container)
			fmt.Printf("  Health:    %s\n", resp.Ollama.Health)
			fmt.Printf("  URL:       %s\n", resp.Ollama.URL)
			if resp.Ollama.Version != "" {
				fmt.Printf("  Version:   %s\n", resp.Ollama.Version)
			}
			fmt.Printf("Models:\n")
			fmt.Printf("  Configured: %v\n", resp.Models.Configured)
			fmt.Printf("  Ready:      %v\n", resp.Models.Ready)
			if resp.Cache != nil {
				fmt.Printf("Cache:\n")
				fmt.Printf("  Entries: %d (hits %d, misses %d)\n",
					resp.Cache.Entries, resp.Cache.Hits, resp.Cache.Misses)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
