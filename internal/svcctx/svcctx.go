// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/config"
	"github.com/dajtuba/constructosaurus-sub001/internal/ensemble"
	"github.com/dajtuba/constructosaurus-sub001/internal/home"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Ollama     *ollama.Client
	Registry   *providers.Registry
	Controller *ensemble.Controller
	Cache      *cache.Cache
	Recorder   *metrics.Recorder
	ConfigMgr  *config.Manager
	Logger     *slog.Logger
	Home       *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// OllamaFrom extracts the Ollama runtime client from context.
func OllamaFrom(ctx context.Context) *ollama.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ollama
	}
	return nil
}

// RegistryFrom extracts the vision model registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ControllerFrom extracts the escalation controller from context.
func ControllerFrom(ctx context.Context) *ensemble.Controller {
	if s := ServicesFrom(ctx); s != nil {
		return s.Controller
	}
	return nil
}

// CacheFrom extracts the extraction cache from context.
// Returns nil when caching is disabled.
func CacheFrom(ctx context.Context) *cache.Cache {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// RecorderFrom extracts the metrics recorder from context.
func RecorderFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Recorder
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigMgr
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
