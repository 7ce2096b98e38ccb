package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// VisionClient is the interface the escalation ladder drives. Implementations
// talk to one model behind one protocol; they return the model's raw text and
// never parse it.
type VisionClient interface {
	// Name returns the registry alias (e.g., "primary").
	Name() string

	// Model returns the runtime model identifier (e.g., "qwen2.5vl:7b").
	Model() string

	// Complete runs one vision completion.
	Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error)

	// HealthCheck verifies the backing runtime is reachable.
	HealthCheck(ctx context.Context) error

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// VisionRequest is a single-image completion request.
type VisionRequest struct {
	// Prompts
	SystemPrompt string `json:"system_prompt,omitempty"`
	Prompt       string `json:"prompt"`

	// Raw image bytes (PNG or JPEG)
	Image []byte `json:"-"`

	// Generation parameters; zero values use the client defaults
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"-"`

	// Format is an optional JSON schema for constrained decoding.
	Format json.RawMessage `json:"format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// VisionResult is the complete response from a vision call.
type VisionResult struct {
	// Response content
	Success bool   `json:"success"`
	Text    string `json:"text"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Token counts when the runtime reports them
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`
	TotalTime     time.Duration `json:"total_time"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	// Error info
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Error types reported in VisionResult.ErrorType.
const (
	ErrorTypeHTTP          = "http_error"
	ErrorTypeTimeout       = "timeout"
	ErrorTypeCancelled     = "cancelled"
	ErrorTypeRateLimited   = "rate_limited"
	ErrorTypeModelNotFound = "model_not_found"
	ErrorTypeEmptyResponse = "empty_response"
)

// RateLimitError signals a 429 from a provider, carrying the server's
// Retry-After hint when present.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError unwraps err looking for a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
