// Package server provides the constructosaurus HTTP server. It owns the
// Ollama runtime lifecycle, the model registry, the extraction cache, and
// the escalation controller, and injects them into request contexts for the
// endpoint handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/analysis"
	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/config"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/ensemble"
	"github.com/dajtuba/constructosaurus-sub001/internal/home"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
	"github.com/dajtuba/constructosaurus-sub001/internal/server/endpoints"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// HomePath overrides the default ~/.constructosaurus home directory
	HomePath string
	// OllamaConfig overrides runtime container settings; tests use it for
	// unique names and ports
	OllamaConfig ollama.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// Server is the main constructosaurus HTTP server.
// It manages the Ollama runtime container lifecycle - starting it on server
// start and stopping it on server shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	configMgr  *config.Manager
	ollamaMgr  *ollama.DockerManager // nil when the runtime is unmanaged
	runtimeURL string
	registry   *providers.Registry
	cache      *cache.Cache
	recorder   *metrics.Recorder
	controller *ensemble.Controller
	logger     *slog.Logger

	runtime *ollama.Client

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h, err := home.New(cfg.HomePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home: %w", err)
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	snapshot := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		snapshot = cfg.ConfigManager.Get()
	}

	s := &Server{
		home:      h,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Runtime container manager, unless an external runtime is configured.
	if snapshot.Ollama.Managed {
		dc := cfg.OllamaConfig
		if dc.ContainerName == "" {
			dc.ContainerName = snapshot.Ollama.ContainerName
		}
		if dc.HomePath == "" {
			dc.HomePath = h.Path()
		}
		if dc.Image == "" {
			dc.Image = snapshot.Ollama.Image
		}
		if dc.HostPort == "" {
			dc.HostPort = snapshot.Ollama.Port
		}
		if dc.ModelsPath == "" {
			dc.ModelsPath = h.RuntimePath()
		}
		mgr, err := ollama.NewDockerManager(dc)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama manager: %w", err)
		}
		s.ollamaMgr = mgr
		s.runtimeURL = mgr.URL()
	} else {
		s.runtimeURL = config.ResolveEnvVars(snapshot.Ollama.BaseURL)
	}

	// Model registry. The runtime URL is pinned for the server's lifetime;
	// config reloads swap the model set, not the runtime.
	s.registry = providers.NewRegistry()
	s.registry.SetLogger(cfg.Logger)
	if cfg.ConfigManager != nil {
		rc := snapshot.ToRegistryConfig()
		rc.BaseURL = s.runtimeURL
		s.registry.Reload(rc)

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			rc := c.ToRegistryConfig()
			rc.BaseURL = s.runtimeURL
			s.registry.Reload(rc)
			cfg.Logger.Info("model registry reloaded from config")
		})
	} else {
		s.registry.Reload(providers.RegistryConfig{
			BaseURL:   s.runtimeURL,
			KeepAlive: snapshot.Ollama.KeepAlive,
		})
	}

	// Extraction cache.
	if snapshot.Cache.Enabled {
		dir := snapshot.Cache.Dir
		if dir == "" {
			dir = h.CachePath()
		}
		c, err := cache.New(cache.Config{
			Dir:    dir,
			TTL:    time.Duration(snapshot.Cache.TTLHours) * time.Hour,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		s.cache = c
	}

	s.recorder = metrics.NewRecorder(0)

	analysisTimeout := time.Duration(snapshot.Analysis.TimeoutSeconds) * time.Second
	pre := analysis.NewPreprocessor(snapshot.Analysis.PreprocessorURL, analysisTimeout, cfg.Logger)
	grids := analysis.NewGridCounter(snapshot.Analysis.GridURL, analysisTimeout, cfg.Logger)

	s.controller = ensemble.NewController(ensemble.ControllerDeps{
		Registry:     s.registry,
		Cache:        s.cache,
		Preprocessor: pre,
		GridCounter:  grids,
		Recorder:     s.recorder,
		Logger:       cfg.Logger,
	}, ensemble.ControllerConfig{
		TargetConfidence: snapshot.Escalation.TargetConfidence,
		Passes:           snapshot.Escalation.Passes,
		Parallelism:      snapshot.Escalation.Parallelism,
		PassTimeout:      time.Duration(snapshot.Escalation.PassTimeoutSeconds) * time.Second,
		MaxMethod:        snapshot.Escalation.MaxMethod,
		SingleCeiling:    snapshot.Confidence.SinglePassCeiling,
		EnsembleCeiling:  snapshot.Confidence.EnsembleCeiling,
		Crosscheck: crosscheck.Options{
			MinorPct:    snapshot.Crosscheck.MinorPct,
			ModeratePct: snapshot.Crosscheck.ModeratePct,
		},
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{OllamaManager: s.ollamaMgr}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: s.withServices(mux),
		// Extraction requests upload full-page images and full-ensemble
		// runs hold the connection through many inference calls.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and the Ollama runtime.
// It blocks until the context is cancelled or an error occurs.
// If an existing runtime container exists, it validates the configuration
// matches before reusing it.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.ollamaMgr != nil {
		if err := s.ollamaMgr.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing ollama container incompatible: %w", err)
		}

		s.logger.Info("starting ollama runtime", "container", s.ollamaMgr.ContainerName())
		if err := s.ollamaMgr.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start ollama runtime: %w", err)
		}
	}

	s.runtime = ollama.NewClient(s.runtimeURL)
	if err := s.runtime.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up the runtime on failure
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	s.logger.Info("ollama runtime is ready", "url", s.runtimeURL)

	// Pull any missing models. Failure leaves the server up but degraded;
	// models can still be pulled through the API.
	if err := s.ensureModels(ctx); err != nil {
		s.logger.Error("model pull failed, continuing with loaded models", "error", err)
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Ollama:     s.runtime,
		Registry:   s.registry,
		Controller: s.controller,
		Cache:      s.cache,
		Recorder:   s.recorder,
		ConfigMgr:  s.configMgr,
		Logger:     s.logger,
		Home:       s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up the runtime on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// ensureModels pulls registered models the runtime is missing, bounded by
// the configured pull timeout.
func (s *Server) ensureModels(ctx context.Context) error {
	snapshot := config.DefaultConfig()
	if s.configMgr != nil {
		snapshot = s.configMgr.Get()
	}
	timeout := time.Duration(snapshot.Ollama.PullTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	pullCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.registry.EnsureModels(pullCtx, func(alias string, p ollama.PullProgress) {
		if p.Total > 0 {
			s.logger.Debug("pull progress",
				"alias", alias, "status", p.Status,
				"completed", p.Completed, "total", p.Total)
		}
	})
}

// shutdown performs graceful shutdown of the HTTP server and the runtime.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.ollamaMgr != nil {
		s.logger.Info("stopping ollama runtime")
		if err := s.ollamaMgr.Stop(shutdownCtx); err != nil {
			s.logger.Error("ollama stop error", "error", err)
		}
		if err := s.ollamaMgr.Close(); err != nil {
			s.logger.Error("ollama manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Runtime returns the Ollama client.
// Returns nil if the server hasn't started yet.
func (s *Server) Runtime() *ollama.Client {
	return s.runtime
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the vision model registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Controller returns the escalation controller.
func (s *Server) Controller() *ensemble.Controller {
	return s.controller
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the runtime is up.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
