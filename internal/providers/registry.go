package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
)

// Registry holds the vision clients built from config. It supports
// config-driven instantiation, hot-reload, and thread-safe access, and it
// answers which configured models are actually present in the runtime.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]VisionClient
	ranks     map[string]int
	baseURL   string
	keepAlive string
	runtime   *ollama.Client
	logger    *slog.Logger
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]VisionClient),
		ranks:   make(map[string]int),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterVision registers a vision client under an alias.
func (r *Registry) RegisterVision(alias string, client VisionClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[alias] = client
	if r.logger != nil {
		r.logger.Info("registered vision client", "alias", alias, "model", client.Model())
	}
}

// UnregisterVision removes a vision client by alias.
func (r *Registry) UnregisterVision(alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, alias)
	delete(r.ranks, alias)
	if r.logger != nil {
		r.logger.Info("unregistered vision client", "alias", alias)
	}
}

// GetVision returns a vision client by alias.
func (r *Registry) GetVision(alias string) (VisionClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[alias]
	if !ok {
		return nil, fmt.Errorf("vision client not found: %s", alias)
	}
	return client, nil
}

// HasVision checks if a vision client is registered.
func (r *Registry) HasVision(alias string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[alias]
	return ok
}

// ListVision returns all registered aliases ordered by rank, then alias.
func (r *Registry) ListVision() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedAliases()
}

// VisionClients returns all registered clients in rank order.
func (r *Registry) VisionClients() []VisionClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	aliases := r.sortedAliases()
	clients := make([]VisionClient, 0, len(aliases))
	for _, alias := range aliases {
		clients = append(clients, r.clients[alias])
	}
	return clients
}

// Runtime returns the shared runtime client, or nil when the registry was
// built without one.
func (r *Registry) Runtime() *ollama.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runtime
}

// sortedAliases returns aliases by rank then name. Must be called with the
// lock held.
func (r *Registry) sortedAliases() []string {
	aliases := make([]string, 0, len(r.clients))
	for alias := range r.clients {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		ri, rj := r.ranks[aliases[i]], r.ranks[aliases[j]]
		if ri == 0 {
			ri = 1 << 30
		}
		if rj == 0 {
			rj = 1 << 30
		}
		if ri != rj {
			return ri < rj
		}
		return aliases[i] < aliases[j]
	})
	return aliases
}

// ReadyModels returns the registered clients whose models are actually
// present in the runtime, in rank order. A configured model that has not
// been pulled yet is silently excluded.
func (r *Registry) ReadyModels(ctx context.Context) ([]VisionClient, error) {
	r.mu.RLock()
	runtime := r.runtime
	r.mu.RUnlock()

	if runtime == nil {
		return nil, fmt.Errorf("registry has no runtime client")
	}

	available, err := runtime.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runtime models: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ready []VisionClient
	for _, alias := range r.sortedAliases() {
		client := r.clients[alias]
		for _, m := range available {
			if ollama.ModelNamesEqual(m.Name, client.Model()) {
				ready = append(ready, client)
				break
			}
		}
	}
	return ready, nil
}

// EnsureModels pulls any registered model missing from the runtime. The
// progress callback receives each status line with the owning alias; nil is
// allowed.
func (r *Registry) EnsureModels(ctx context.Context, progress func(alias string, p ollama.PullProgress)) error {
	r.mu.RLock()
	runtime := r.runtime
	clients := make(map[string]VisionClient, len(r.clients))
	for alias, client := range r.clients {
		clients[alias] = client
	}
	aliases := r.sortedAliases()
	logger := r.logger
	r.mu.RUnlock()

	if runtime == nil {
		return fmt.Errorf("registry has no runtime client")
	}

	for _, alias := range aliases {
		client := clients[alias]
		present, err := runtime.HasModel(ctx, client.Model())
		if err != nil {
			return fmt.Errorf("failed to check model %s: %w", client.Model(), err)
		}
		if present {
			continue
		}

		if logger != nil {
			logger.Info("pulling model", "alias", alias, "model", client.Model())
		}
		var cb func(ollama.PullProgress)
		if progress != nil {
			a := alias
			cb = func(p ollama.PullProgress) { progress(a, p) }
		}
		if err := runtime.Pull(ctx, client.Model(), cb); err != nil {
			return fmt.Errorf("failed to pull model %s: %w", client.Model(), err)
		}
		if logger != nil {
			logger.Info("model pulled", "alias", alias, "model", client.Model())
		}
	}
	return nil
}

// ModelConfig describes one configured model with resolved settings.
type ModelConfig struct {
	Name        string  // Runtime model name
	Protocol    string  // "ollama" (default) or "openai"
	Temperature float64
	MaxTokens   int
	RateLimit   float64 // Requests per second
	MaxRetries  int
	Enabled     bool
	Rank        int // Escalation order; lower ranks go first
}

// RegistryConfig defines the clients to instantiate from config.
type RegistryConfig struct {
	BaseURL   string
	KeepAlive string
	Models    map[string]ModelConfig
}

// NewRegistryFromConfig creates a registry with clients based on
// configuration. Only enabled models are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.baseURL = cfg.BaseURL
	r.keepAlive = cfg.KeepAlive
	r.runtime = ollama.NewClient(cfg.BaseURL)
	r.applyConfig(cfg)
	return r
}

// Reload updates the registry based on new configuration. Clients that are
// no longer configured are unregistered; clients with changed settings are
// recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runtime == nil || r.baseURL != cfg.BaseURL {
		r.runtime = ollama.NewClient(cfg.BaseURL)
	}
	r.baseURL = cfg.BaseURL
	r.keepAlive = cfg.KeepAlive

	want := make(map[string]bool)
	for alias, mcfg := range cfg.Models {
		if !mcfg.Enabled || mcfg.Name == "" {
			continue
		}
		want[alias] = true
		r.ranks[alias] = mcfg.Rank

		existing, hasExisting := r.clients[alias]
		if !hasExisting || needsVisionUpdate(existing, cfg, mcfg) {
			client := createVisionClient(alias, cfg, mcfg)
			if client == nil {
				if r.logger != nil {
					r.logger.Warn("unknown model protocol", "alias", alias, "protocol", mcfg.Protocol)
				}
				delete(want, alias)
				continue
			}
			r.clients[alias] = client
			if r.logger != nil {
				if hasExisting {
					r.logger.Info("updated vision client", "alias", alias, "model", mcfg.Name)
				} else {
					r.logger.Info("registered vision client", "alias", alias, "model", mcfg.Name)
				}
			}
		}
	}

	for alias := range r.clients {
		if !want[alias] {
			delete(r.clients, alias)
			delete(r.ranks, alias)
			if r.logger != nil {
				r.logger.Info("unregistered vision client", "alias", alias)
			}
		}
	}
}

// applyConfig applies configuration without locking (used during init).
func (r *Registry) applyConfig(cfg RegistryConfig) {
	for alias, mcfg := range cfg.Models {
		if !mcfg.Enabled || mcfg.Name == "" {
			continue
		}
		client := createVisionClient(alias, cfg, mcfg)
		if client == nil {
			if r.logger != nil {
				r.logger.Warn("unknown model protocol", "alias", alias, "protocol", mcfg.Protocol)
			}
			continue
		}
		r.clients[alias] = client
		r.ranks[alias] = mcfg.Rank
	}
}

// createVisionClient creates a vision client based on the model protocol.
func createVisionClient(alias string, cfg RegistryConfig, mcfg ModelConfig) VisionClient {
	switch mcfg.Protocol {
	case "", OllamaProtocol:
		return NewOllamaVisionClient(OllamaVisionConfig{
			Alias:       alias,
			Model:       mcfg.Name,
			BaseURL:     cfg.BaseURL,
			KeepAlive:   cfg.KeepAlive,
			Temperature: mcfg.Temperature,
			MaxTokens:   mcfg.MaxTokens,
			RateLimit:   mcfg.RateLimit,
			MaxRetries:  mcfg.MaxRetries,
		})
	case OpenAICompatProtocol:
		return NewOpenAICompatClient(OpenAICompatConfig{
			Alias:       alias,
			Model:       mcfg.Name,
			BaseURL:     cfg.BaseURL,
			Temperature: mcfg.Temperature,
			MaxTokens:   mcfg.MaxTokens,
			RateLimit:   mcfg.RateLimit,
			MaxRetries:  mcfg.MaxRetries,
		})
	default:
		return nil
	}
}

// needsVisionUpdate checks if a client must be recreated for new config.
func needsVisionUpdate(client VisionClient, cfg RegistryConfig, mcfg ModelConfig) bool {
	switch c := client.(type) {
	case *OllamaVisionClient:
		return (mcfg.Protocol != "" && mcfg.Protocol != OllamaProtocol) ||
			c.model != mcfg.Name ||
			c.rateLimit != mcfg.RateLimit ||
			c.runtime.URL() != strings.TrimSuffix(cfg.BaseURL, "/")
	case *OpenAICompatClient:
		return mcfg.Protocol != OpenAICompatProtocol ||
			c.model != mcfg.Name ||
			c.rateLimit != mcfg.RateLimit ||
			c.baseURL != strings.TrimSuffix(cfg.BaseURL, "/")+"/v1"
	default:
		return true
	}
}
