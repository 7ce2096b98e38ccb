package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const OpenAICompatProtocol = "openai"

// OpenAICompatConfig holds configuration for the OpenAI-compatible client.
// It targets the runtime's /v1 facade, so the same local models can be driven
// through either protocol.
type OpenAICompatConfig struct {
	Alias       string
	Model       string
	BaseURL     string // Runtime base URL; "/v1" is appended
	APIKey      string // The local facade ignores it but the SDK requires one
	Temperature float64
	MaxTokens   int
	RateLimit   float64 // Requests per second
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// OpenAICompatClient implements VisionClient using the official OpenAI SDK
// pointed at an OpenAI-compatible endpoint.
type OpenAICompatClient struct {
	alias       string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	rateLimit   float64
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	client      openai.Client
	limiter     *RateLimiter
}

// NewOpenAICompatClient creates a new OpenAI-compatible vision client.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.Alias == "" {
		cfg.Alias = cfg.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama"
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

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/v1"

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	return &OpenAICompatClient{
		alias:       cfg.Alias,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		rateLimit:   cfg.RateLimit,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		timeout:     cfg.Timeout,
		client:      client,
		limiter:     NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the registry alias.
func (c *OpenAICompatClient) Name() string {
	return c.alias
}

// Model returns the runtime model identifier.
func (c *OpenAICompatClient) Model() string {
	return c.model
}

// RequestsPerSecond returns the rate limit.
func (c *OpenAICompatClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAICompatClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAICompatClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// HealthCheck verifies the endpoint is reachable and lists models.
func (c *OpenAICompatClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("models list returned nil response")
	}
	return nil
}

// Complete runs one vision completion. Retries happen inside the SDK
// transport; rate limit responses drain the local token bucket.
func (c *OpenAICompatClient) Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	result := &VisionResult{
		RequestID: requestID,
		Provider:  c.alias,
		ModelUsed: c.model,
		Attempts:  1,
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

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
	}
	if len(req.Image) > 0 {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.Image),
		}))
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(parts))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}
	// The facade does not accept full JSON schemas; downgrade to JSON mode
	// and let the parser validate the shape.
	if len(req.Format) > 0 {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	execStart := time.Now()
	resp, err := c.client.Chat.Completions.New(genCtx, params)
	if err != nil {
		err = mapOpenAIError(err)
		if rle, ok := IsRateLimitError(err); ok {
			c.limiter.Record429(rle.RetryAfter)
			result.ErrorType = ErrorTypeRateLimited
		} else if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			result.ErrorType = ErrorTypeTimeout
		} else {
			result.ErrorType = ErrorTypeHTTP
		}
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		result.ErrorType = ErrorTypeEmptyResponse
		result.ErrorMessage = "no content in response"
		result.TotalTime = time.Since(start)
		return result, errors.New("no content in response")
	}

	result.Success = true
	result.Text = resp.Choices[0].Message.Content
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.ExecutionTime = time.Since(execStart)
	result.TotalTime = time.Since(start)

	return result, nil
}

// mapOpenAIError converts SDK errors to package error types.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("completion error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("completion error (status %d)", apiErr.StatusCode)
	}
	return err
}

// Verify interface
var _ VisionClient = (*OpenAICompatClient)(nil)
