// Package endpoints defines all API endpoints for the constructosaurus
// server. Each endpoint implements the api.Endpoint interface, keeping the
// HTTP handler and its CLI command together in one place.
package endpoints

import (
	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
)

// Config holds dependencies endpoints need beyond the request-scoped
// services.
type Config struct {
	// OllamaManager gives the status endpoint container visibility. Nil
	// when the runtime is externally managed.
	OllamaManager *ollama.DockerManager
}

// All returns every endpoint, wired with the given config.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{OllamaManager: cfg.OllamaManager},
		&ExtractEndpoint{},
		&CrosscheckEndpoint{},
		&ListModelsEndpoint{},
		&PullModelEndpoint{},
		&CacheStatsEndpoint{},
		&CachePurgeEndpoint{},
		&MetricsSummaryEndpoint{},
	}
}
