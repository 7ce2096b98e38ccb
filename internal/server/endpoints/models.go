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

// ModelInfo is one registered vision model and its runtime state.
type ModelInfo struct {
	Alias string `json:"alias"`
	Model string `json:"model"`
	Ready bool   `json:"ready"`
}

// ListModelsResponse lists registered models in escalation order.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
	// RuntimeError is set when the readiness probe failed; Ready flags are
	// then all false.
	RuntimeError string `json:"runtime_error,omitempty"`
}

// ListModelsEndpoint handles GET /api/v1/models.
type ListModelsEndpoint struct{}

func (e *ListModelsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/models", e.handler
}

func (e *ListModelsEndpoint) RequiresInit() bool { return false }

func (e *ListModelsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "model registry not initialized")
		return
	}

	resp := ListModelsResponse{Models: []ModelInfo{}}

	ready := map[string]bool{}
	if clients, err := registry.ReadyModels(r.Context()); err != nil {
		resp.RuntimeError = err.Error()
	} else {
		for _, c := range clients {
			ready[c.Name()] = true
		}
	}

	for _, alias := range registry.ListVision() {
		client, err := registry.GetVision(alias)
		if err != nil {
			continue
		}
		resp.Models = append(resp.Models, ModelInfo{
			Alias: alias,
			Model: client.Model(),
			Ready: ready[alias],
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListModelsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered vision models",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListModelsResponse
			if err := client.Get(cmd.Context(), "/api/v1/models", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PullModelRequest names the model alias to pull.
type PullModelRequest struct {
	Alias string `json:"alias"`
}

// PullModelResponse reports the pull outcome.
type PullModelResponse struct {
	Alias  string `json:"alias"`
	Model  string `json:"model"`
	Status string `json:"status"`
}

// PullModelEndpoint handles POST /api/v1/models/pull. The pull is
// synchronous; large models take minutes on first download.
type PullModelEndpoint struct{}

func (e *PullModelEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/models/pull", e.handler
}

func (e *PullModelEndpoint) RequiresInit() bool { return true }

func (e *PullModelEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req PullModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Alias == "" {
		writeError(w, http.StatusBadRequest, "alias is required")
		return
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "model registry not initialized")
		return
	}
	client, err := registry.GetVision(req.Alias)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	runtime := svcctx.OllamaFrom(r.Context())
	if runtime == nil {
		writeError(w, http.StatusServiceUnavailable, "runtime client not initialized")
		return
	}

	logger := svcctx.LoggerFrom(r.Context())
	var progress func(ollama.PullProgress)
	if logger != nil {
		progress = func(p ollama.PullProgress) {
			logger.Debug("pull progress", "model", client.Model(), "status", p.Status)
		}
	}

	if err := runtime.Pull(r.Context(), client.Model(), progress); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PullModelResponse{
		Alias:  req.Alias,
		Model:  client.Model(),
		Status: "pulled",
	})
}

func (e *PullModelEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <alias>",
		Short: "Pull a registered model onto the runtime",
		Long: `Pull a registered model onto the runtime.

The pull runs on the server and blocks until complete. First downloads of
vision models are several gigabytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PullModelResponse
			err := client.Post(cmd.Context(), "/api/v1/models/pull", PullModelRequest{Alias: args[0]}, &resp)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s): %s\n", resp.Alias, resp.Model, resp.Status)
			return nil
		},
	}
}
