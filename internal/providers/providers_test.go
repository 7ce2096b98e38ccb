package providers

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockVisionClient(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		c := NewMockVisionClient()
		c.ResponseText = `{"beams": [{"mark": "B1"}]}`

		result, err := c.Complete(context.Background(), &VisionRequest{
			Prompt: "extract the beam schedule",
			Image:  []byte("fake image"),
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if !result.Success {
			t.Error("Success = false, want true")
		}
		if result.Text != `{"beams": [{"mark": "B1"}]}` {
			t.Errorf("Text = %q", result.Text)
		}
		if result.ModelUsed != "mock-model" {
			t.Errorf("ModelUsed = %q, want mock-model", result.ModelUsed)
		}
		if c.RequestCount() != 1 {
			t.Errorf("RequestCount = %d, want 1", c.RequestCount())
		}
	})

	t.Run("scripted responses consumed in order", func(t *testing.T) {
		c := NewMockVisionClient()
		c.Responses = []string{`{"pass": 1}`, `{"pass": 2}`}
		c.ResponseText = `{"fallback": true}`

		ctx := context.Background()
		first, _ := c.Complete(ctx, &VisionRequest{})
		second, _ := c.Complete(ctx, &VisionRequest{})
		third, _ := c.Complete(ctx, &VisionRequest{})

		if first.Text != `{"pass": 1}` || second.Text != `{"pass": 2}` {
			t.Errorf("scripted order wrong: %q then %q", first.Text, second.Text)
		}
		if third.Text != `{"fallback": true}` {
			t.Errorf("expected fallback after queue drained, got %q", third.Text)
		}
	})

	t.Run("failure", func(t *testing.T) {
		c := NewMockVisionClient()
		c.ShouldFail = true

		result, err := c.Complete(context.Background(), &VisionRequest{})
		if err == nil {
			t.Error("expected error, got nil")
		}
		if result.Success {
			t.Error("expected Success = false")
		}
		if result.ErrorType != "mock_failure" {
			t.Errorf("ErrorType = %q, want mock_failure", result.ErrorType)
		}
	})

	t.Run("fail after N", func(t *testing.T) {
		c := NewMockVisionClient()
		c.FailAfter = 2

		ctx := context.Background()
		if _, err := c.Complete(ctx, &VisionRequest{}); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}
		if _, err := c.Complete(ctx, &VisionRequest{}); err != nil {
			t.Fatalf("second request should succeed: %v", err)
		}
		if _, err := c.Complete(ctx, &VisionRequest{}); err == nil {
			t.Error("third request should fail")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		c := NewMockVisionClient()
		c.Latency = 5 * time.Second

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := c.Complete(ctx, &VisionRequest{})
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result.ErrorType != ErrorTypeCancelled {
			t.Errorf("ErrorType = %q, want %q", result.ErrorType, ErrorTypeCancelled)
		}
	})

	t.Run("preserves caller request ID", func(t *testing.T) {
		c := NewMockVisionClient()

		result, err := c.Complete(context.Background(), &VisionRequest{RequestID: "pass-7"})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if result.RequestID != "pass-7" {
			t.Errorf("RequestID = %q, want pass-7", result.RequestID)
		}
	})

	t.Run("reset", func(t *testing.T) {
		c := NewMockVisionClient()
		c.Responses = []string{`{"pass": 1}`}

		ctx := context.Background()
		c.Complete(ctx, &VisionRequest{})
		c.Reset()

		if c.RequestCount() != 0 {
			t.Errorf("RequestCount after Reset = %d, want 0", c.RequestCount())
		}
		result, _ := c.Complete(ctx, &VisionRequest{})
		if result.Text != `{"pass": 1}` {
			t.Errorf("queue not replayed after Reset, got %q", result.Text)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows initial burst", func(t *testing.T) {
		limiter := NewRateLimiter(10.0)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		}
		elapsed := time.Since(start)

		// Burst capacity should absorb these without sleeping.
		if elapsed > time.Second {
			t.Errorf("took too long: %v", elapsed)
		}
	})

	t.Run("try consume drains bucket", func(t *testing.T) {
		limiter := NewRateLimiter(1.0) // capacity 60

		consumed := 0
		for limiter.TryConsume() {
			consumed++
		}
		if consumed != 60 {
			t.Errorf("consumed %d tokens, want 60", consumed)
		}
		if limiter.TryConsume() {
			t.Error("TryConsume should fail on an empty bucket")
		}
	})

	t.Run("wait returns when a token refills", func(t *testing.T) {
		limiter := NewRateLimiter(50.0)
		for limiter.TryConsume() {
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		limiter := NewRateLimiter(1.0)
		limiter.TryConsume()
		limiter.TryConsume()

		status := limiter.Status()
		if status.TokensLimit != 60 {
			t.Errorf("TokensLimit = %d, want 60", status.TokensLimit)
		}
		if status.TotalConsumed != 2 {
			t.Errorf("TotalConsumed = %d, want 2", status.TotalConsumed)
		}
		if status.TokensAvailable <= 0 {
			t.Error("expected positive tokens available")
		}
	})

	t.Run("record 429", func(t *testing.T) {
		limiter := NewRateLimiter(1.0)

		limiter.Record429(5 * time.Second)

		status := limiter.Status()
		if status.Last429Time.IsZero() {
			t.Error("Last429Time should be set")
		}
		if status.TokensAvailable != 0 {
			t.Errorf("TokensAvailable = %d, want 0 after 429", status.TokensAvailable)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(0.01)
		for limiter.TryConsume() {
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(100.0)

		var wg sync.WaitGroup
		var failures atomic.Int32

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() > 0 {
			t.Errorf("had %d failures", failures.Load())
		}
		status := limiter.Status()
		if status.TotalConsumed != 10 {
			t.Errorf("TotalConsumed = %d, want 10", status.TotalConsumed)
		}
	})

	t.Run("zero rate uses default", func(t *testing.T) {
		limiter := NewRateLimiter(0)
		if limiter.requestsPerSecond != 2.0 {
			t.Errorf("requestsPerSecond = %f, want 2.0", limiter.requestsPerSecond)
		}
	})
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Message: "rate limited", RetryAfter: 3 * time.Second, StatusCode: 429}
	if !strings.Contains(err.Error(), "retry after 3s") {
		t.Errorf("Error() = %q, want retry hint", err.Error())
	}

	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatal("IsRateLimitError should match")
	}
	if rle.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", rle.StatusCode)
	}

	if _, ok := IsRateLimitError(context.Canceled); ok {
		t.Error("IsRateLimitError should not match unrelated errors")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"3", 3 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"", 0},
		{"later", 0},
		{"-1", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
