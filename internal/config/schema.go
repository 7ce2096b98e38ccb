package config

import "sort"

// Config holds constructosaurus configuration.
// Stored at: ~/.constructosaurus/config.yaml
type Config struct {
	Server     ServerCfg           `mapstructure:"server" yaml:"server"`
	Ollama     OllamaCfg           `mapstructure:"ollama" yaml:"ollama"`
	Models     map[string]ModelCfg `mapstructure:"models" yaml:"models"`
	Escalation EscalationCfg       `mapstructure:"escalation" yaml:"escalation"`
	Confidence ConfidenceCfg       `mapstructure:"confidence" yaml:"confidence"`
	Crosscheck CrosscheckCfg       `mapstructure:"crosscheck" yaml:"crosscheck"`
	Cache      CacheCfg            `mapstructure:"cache" yaml:"cache"`
	Analysis   AnalysisCfg         `mapstructure:"analysis" yaml:"analysis"`
	Logging    LoggingCfg          `mapstructure:"logging" yaml:"logging"`
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// OllamaCfg holds the local inference runtime configuration.
type OllamaCfg struct {
	// BaseURL is the runtime endpoint (supports ${ENV_VAR} syntax).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Managed controls whether the server owns the Ollama container lifecycle.
	// When false, BaseURL must point at an externally managed runtime.
	Managed bool `mapstructure:"managed" yaml:"managed"`
	// ContainerName is the Docker container name (default: constructosaurus-ollama).
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: ollama/ollama:latest).
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 11434).
	Port string `mapstructure:"port" yaml:"port"`
	// KeepAlive controls how long models stay loaded between requests.
	KeepAlive string `mapstructure:"keep_alive" yaml:"keep_alive"`
	// PullTimeoutMinutes bounds model pulls at startup.
	PullTimeoutMinutes int `mapstructure:"pull_timeout_minutes" yaml:"pull_timeout_minutes"`
}

// ModelCfg configures one vision model available to the escalation ladder.
type ModelCfg struct {
	// Name is the runtime model tag, e.g. "qwen2.5vl:7b".
	Name string `mapstructure:"name" yaml:"name"`
	// Protocol selects the client: "ollama" (native API) or "openai"
	// (OpenAI-compatible facade at {base_url}/v1).
	Protocol string `mapstructure:"protocol" yaml:"protocol"`
	// Temperature for extraction calls. Low values keep output parseable.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RateLimit is requests per second.
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"`
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	// Rank orders models for tier selection; rank 1 is the primary model.
	Rank int `mapstructure:"rank" yaml:"rank"`
}

// EscalationCfg tunes the accuracy ladder.
type EscalationCfg struct {
	// TargetConfidence stops the ladder once reached.
	TargetConfidence float64 `mapstructure:"target_confidence" yaml:"target_confidence"`
	// Passes is the multi-pass repetition count.
	Passes int `mapstructure:"passes" yaml:"passes"`
	// Parallelism bounds concurrent inference calls within a tier.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
	// PassTimeoutSeconds bounds a single inference call.
	PassTimeoutSeconds int `mapstructure:"pass_timeout_seconds" yaml:"pass_timeout_seconds"`
	// MaxMethod caps the ladder: single, multi_pass, multi_model, full_ensemble.
	MaxMethod string `mapstructure:"max_method" yaml:"max_method"`
}

// ConfidenceCfg surfaces the scoring ceilings as tuning knobs.
type ConfidenceCfg struct {
	SinglePassCeiling float64 `mapstructure:"single_pass_ceiling" yaml:"single_pass_ceiling"`
	EnsembleCeiling   float64 `mapstructure:"ensemble_ceiling" yaml:"ensemble_ceiling"`
}

// CrosscheckCfg holds quantity cross-validation thresholds (percent).
type CrosscheckCfg struct {
	MinorPct    float64 `mapstructure:"minor_pct" yaml:"minor_pct"`
	ModeratePct float64 `mapstructure:"moderate_pct" yaml:"moderate_pct"`
}

// CacheCfg holds extraction result cache settings.
type CacheCfg struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	TTLHours int  `mapstructure:"ttl_hours" yaml:"ttl_hours"`
	// Dir overrides the default cache location under the home directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AnalysisCfg points at the optional image-analysis collaborators.
// Empty URLs disable the respective step.
type AnalysisCfg struct {
	PreprocessorURL string `mapstructure:"preprocessor_url" yaml:"preprocessor_url"`
	GridURL         string `mapstructure:"grid_url" yaml:"grid_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoggingCfg controls the serve command's slog handler.
type LoggingCfg struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Ollama: OllamaCfg{
			BaseURL:            "http://localhost:11434",
			Managed:            true,
			ContainerName:      "constructosaurus-ollama",
			Image:              "ollama/ollama:latest",
			Port:               "11434",
			KeepAlive:          "10m",
			PullTimeoutMinutes: 30,
		},
		Models: map[string]ModelCfg{
			"primary": {
				Name:        "qwen2.5vl:7b",
				Protocol:    "ollama",
				Temperature: 0.1,
				MaxTokens:   4096,
				RateLimit:   2.0,
				MaxRetries:  3,
				Enabled:     true,
				Rank:        1,
			},
			"secondary": {
				Name:        "llama3.2-vision:11b",
				Protocol:    "ollama",
				Temperature: 0.1,
				MaxTokens:   4096,
				RateLimit:   2.0,
				MaxRetries:  3,
				Enabled:     true,
				Rank:        2,
			},
			"compact": {
				Name:        "minicpm-v:8b",
				Protocol:    "ollama",
				Temperature: 0.1,
				MaxTokens:   4096,
				RateLimit:   2.0,
				MaxRetries:  3,
				Enabled:     false,
				Rank:        3,
			},
		},
		Escalation: EscalationCfg{
			TargetConfidence:   0.90,
			Passes:             3,
			Parallelism:        3,
			PassTimeoutSeconds: 180,
			MaxMethod:          "full_ensemble",
		},
		Confidence: ConfidenceCfg{
			SinglePassCeiling: 0.85,
			EnsembleCeiling:   0.95,
		},
		Crosscheck: CrosscheckCfg{
			MinorPct:    5.0,
			ModeratePct: 20.0,
		},
		Cache: CacheCfg{
			Enabled:  true,
			TTLHours: 24,
		},
		Analysis: AnalysisCfg{
			TimeoutSeconds: 30,
		},
		Logging: LoggingCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetModel returns a model config by alias.
func (c *Config) GetModel(alias string) (ModelCfg, bool) {
	cfg, ok := c.Models[alias]
	return cfg, ok
}

// EnabledModels returns all enabled models keyed by alias.
func (c *Config) EnabledModels() map[string]ModelCfg {
	result := make(map[string]ModelCfg)
	for alias, cfg := range c.Models {
		if cfg.Enabled {
			result[alias] = cfg
		}
	}
	return result
}

// RankedModelAliases returns enabled model aliases ordered by rank,
// ties broken by alias so the order is stable.
func (c *Config) RankedModelAliases() []string {
	aliases := make([]string, 0, len(c.Models))
	for alias, cfg := range c.Models {
		if cfg.Enabled {
			aliases = append(aliases, alias)
		}
	}
	sort.Slice(aliases, func(i, j int) bool {
		ri, rj := c.Models[aliases[i]].Rank, c.Models[aliases[j]].Rank
		if ri != rj {
			return ri < rj
		}
		return aliases[i] < aliases[j]
	})
	return aliases
}
