package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
)

const OllamaProtocol = "ollama"

// OllamaVisionConfig holds configuration for the native Ollama vision client.
type OllamaVisionConfig struct {
	Alias       string // Registry alias ("primary", "secondary")
	Model       string // Runtime model name ("qwen2.5vl:7b")
	BaseURL     string
	KeepAlive   string
	Temperature float64
	MaxTokens   int
	RateLimit   float64 // Requests per second
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// OllamaVisionClient implements VisionClient against the Ollama native API.
type OllamaVisionClient struct {
	alias       string
	model       string
	keepAlive   string
	temperature float64
	maxTokens   int
	rateLimit   float64
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	runtime     *ollama.Client
	limiter     *RateLimiter
}

// NewOllamaVisionClient creates a new native Ollama vision client.
func NewOllamaVisionClient(cfg OllamaVisionConfig) *OllamaVisionClient {
	if cfg.Alias == "" {
		cfg.Alias = cfg.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = "10m"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}

	return &OllamaVisionClient{
		alias:       cfg.Alias,
		model:       cfg.Model,
		keepAlive:   cfg.KeepAlive,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		rateLimit:   cfg.RateLimit,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		timeout:     cfg.Timeout,
		runtime:     ollama.NewClient(cfg.BaseURL),
		limiter:     NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the registry alias.
func (c *OllamaVisionClient) Name() string {
	return c.alias
}

// Model returns the runtime model identifier.
func (c *OllamaVisionClient) Model() string {
	return c.model
}

// RequestsPerSecond returns the rate limit.
func (c *OllamaVisionClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *OllamaVisionClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OllamaVisionClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// HealthCheck verifies the runtime is reachable.
func (c *OllamaVisionClient) HealthCheck(ctx context.Context) error {
	return c.runtime.HealthCheck(ctx)
}

// Complete runs one vision completion with retry on transient failures.
func (c *OllamaVisionClient) Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	result := &VisionResult{
		RequestID: requestID,
		Provider:  c.alias,
		ModelUsed: c.model,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		result.ErrorType = ErrorTypeCancelled
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	genReq := &ollama.GenerateRequest{
		Model:     c.model,
		Prompt:    req.Prompt,
		System:    req.SystemPrompt,
		Format:    req.Format,
		KeepAlive: c.keepAlive,
		Options: &ollama.GenerateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	}
	if len(req.Image) > 0 {
		genReq.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		result.Attempts = attempt + 1
		attemptStart := time.Now()

		resp, err := c.runtime.Generate(genCtx, genReq)
		if err == nil {
			if resp.Response == "" {
				result.ErrorType = ErrorTypeEmptyResponse
				result.ErrorMessage = "empty response from model"
				result.TotalTime = time.Since(start)
				return result, errors.New("empty response from model")
			}
			result.Success = true
			result.Text = resp.Response
			result.PromptTokens = resp.PromptEvalCount
			result.CompletionTokens = resp.EvalCount
			result.TotalTokens = resp.PromptEvalCount + resp.EvalCount
			result.ExecutionTime = time.Since(attemptStart)
			result.TotalTime = time.Since(start)
			return result, nil
		}

		// Terminal failures: missing model and caller cancellation
		if errors.Is(err, ollama.ErrModelNotFound) {
			result.ErrorType = ErrorTypeModelNotFound
			result.ErrorMessage = err.Error()
			result.TotalTime = time.Since(start)
			return result, err
		}
		if genCtx.Err() != nil {
			if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
				result.ErrorType = ErrorTypeTimeout
			} else {
				result.ErrorType = ErrorTypeCancelled
			}
			result.ErrorMessage = err.Error()
			result.TotalTime = time.Since(start)
			return result, err
		}

		lastErr = err
		sleepWithJitter(genCtx, c.retryDelay, attempt)
	}

	result.ErrorType = ErrorTypeHTTP
	result.ErrorMessage = lastErr.Error()
	result.TotalTime = time.Since(start)
	return result, lastErr
}

// sleepWithJitter sleeps for an exponentially growing duration with jitter,
// respecting context cancellation.
func sleepWithJitter(ctx context.Context, baseDelay time.Duration, attempt int) {
	delay := baseDelay * time.Duration(1<<attempt)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}

	// Add jitter: -20% to +30%
	jitter := time.Duration(float64(delay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// Verify interface
var _ VisionClient = (*OllamaVisionClient)(nil)
