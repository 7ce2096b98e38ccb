package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockVisionClient is a VisionClient for testing.
type MockVisionClient struct {
	// Identity
	Alias     string
	ModelName string

	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int      // Fail after N requests (0 = never)
	ResponseText string   // Returned when the queue is empty
	Responses    []string // Scripted responses consumed in order
	HealthErr    error

	// Rate limiting
	RPS        float64
	Retries    int
	RetryDelay time.Duration

	// State
	mu           sync.Mutex
	next         int
	requestCount atomic.Int64
}

// NewMockVisionClient creates a new mock client with sensible defaults.
func NewMockVisionClient() *MockVisionClient {
	return &MockVisionClient{
		Alias:        "mock",
		ModelName:    "mock-model",
		Latency:      time.Millisecond,
		ResponseText: `{"beams": []}`,
		RPS:          10.0,
		Retries:      3,
		RetryDelay:   time.Second,
	}
}

// Name returns the registry alias.
func (c *MockVisionClient) Name() string {
	return c.Alias
}

// Model returns the model identifier.
func (c *MockVisionClient) Model() string {
	return c.ModelName
}

// RequestsPerSecond returns the rate limit.
func (c *MockVisionClient) RequestsPerSecond() float64 {
	return c.RPS
}

// MaxRetries returns the maximum retry attempts.
func (c *MockVisionClient) MaxRetries() int {
	return c.Retries
}

// RetryDelayBase returns the base delay between retries.
func (c *MockVisionClient) RetryDelayBase() time.Duration {
	return c.RetryDelay
}

// HealthCheck returns the configured health error.
func (c *MockVisionClient) HealthCheck(_ context.Context) error {
	return c.HealthErr
}

// Complete returns the next scripted response.
func (c *MockVisionClient) Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &VisionResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  "mock",
		ModelUsed: c.ModelName,
		Attempts:  1,
	}
	if req.RequestID != "" {
		result.RequestID = req.RequestID
	}

	// Check if we should fail
	if c.ShouldFail {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	// Simulate latency
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = ErrorTypeCancelled
			result.ErrorMessage = ctx.Err().Error()
			result.TotalTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	// Pop the next scripted response, falling back to ResponseText
	c.mu.Lock()
	text := c.ResponseText
	if c.next < len(c.Responses) {
		text = c.Responses[c.next]
		c.next++
	}
	c.mu.Unlock()

	result.Success = true
	result.Text = text
	result.PromptTokens = len(req.Prompt) / 4
	result.CompletionTokens = len(text) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockVisionClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset resets the request counter and the scripted queue position.
func (c *MockVisionClient) Reset() {
	c.mu.Lock()
	c.next = 0
	c.mu.Unlock()
	c.requestCount.Store(0)
}

// Verify interface
var _ VisionClient = (*MockVisionClient)(nil)
