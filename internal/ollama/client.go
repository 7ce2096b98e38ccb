package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for the ollama package.
var (
	// ErrUnhealthy is returned when the runtime health check fails.
	ErrUnhealthy = errors.New("ollama health check failed")

	// ErrModelNotFound is returned when a generate call names a model the
	// runtime has not pulled.
	ErrModelNotFound = errors.New("model not found")
)

// Client is an HTTP client for the Ollama native API.
type Client struct {
	url        string
	httpClient *http.Client
	pullClient *http.Client
}

// NewClient creates a new Ollama client. Generate calls carry no client-side
// timeout of their own; callers bound them through the context.
func NewClient(url string) *Client {
	return &Client{
		url: strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		// Pulls stream progress for as long as the download takes.
		pullClient: &http.Client{},
	}
}

// URL returns the base URL the client talks to.
func (c *Client) URL() string {
	return c.url
}

// GenerateOptions carries model sampling parameters.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateRequest represents a /api/generate request.
type GenerateRequest struct {
	Model     string           `json:"model"`
	Prompt    string           `json:"prompt"`
	System    string           `json:"system,omitempty"`
	Images    []string         `json:"images,omitempty"`
	Format    json.RawMessage  `json:"format,omitempty"`
	Stream    bool             `json:"stream"`
	KeepAlive string           `json:"keep_alive,omitempty"`
	Options   *GenerateOptions `json:"options,omitempty"`
}

// GenerateResponse represents a non-streaming /api/generate response.
// Durations are nanoseconds as reported by the runtime.
type GenerateResponse struct {
	Model              string `json:"model"`
	CreatedAt          string `json:"created_at"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`
	LoadDuration       int64  `json:"load_duration,omitempty"`
	PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"`
	EvalCount          int    `json:"eval_count,omitempty"`
	EvalDuration       int64  `json:"eval_duration,omitempty"`
}

// ModelDetails describes a model listed by /api/tags.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// ModelInfo describes one locally available model.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt string       `json:"modified_at,omitempty"`
	Size       int64        `json:"size,omitempty"`
	Digest     string       `json:"digest,omitempty"`
	Details    ModelDetails `json:"details,omitempty"`
}

// PullProgress is one status line of a streaming /api/pull.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Generate runs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, genReq *GenerateRequest) (*GenerateResponse, error) {
	reqBody := *genReq
	reqBody.Stream = false

	bodyBytes, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, genReq.Model)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate error (status %d): %s", resp.StatusCode, apiError(respBody))
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, string(respBody))
	}

	return &genResp, nil
}

// ListModels returns the models currently present in the runtime.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tags error (status %d): %s", resp.StatusCode, apiError(body))
	}

	var tags struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return tags.Models, nil
}

// HasModel reports whether the named model is present.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if ModelNamesEqual(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// ModelNamesEqual compares two model names, treating an untagged name as
// ":latest" the way the runtime resolves it.
func ModelNamesEqual(listed, requested string) bool {
	if !strings.Contains(listed, ":") {
		listed += ":latest"
	}
	if !strings.Contains(requested, ":") {
		requested += ":latest"
	}
	return listed == requested
}

// Pull downloads a model, invoking progress for each status line the runtime
// streams. A nil progress callback is allowed.
func (c *Client) Pull(ctx context.Context, model string, progress func(PullProgress)) error {
	bodyBytes, err := json.Marshal(map[string]any{
		"model":  model,
		"stream": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/pull", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull error (status %d): %s", resp.StatusCode, apiError(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var p PullProgress
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("failed to unmarshal pull status: %w (line: %s)", err, string(line))
		}
		if p.Error != "" {
			return fmt.Errorf("pull failed: %s", p.Error)
		}
		if progress != nil {
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read pull stream: %w", err)
	}

	return nil
}

// Version returns the runtime version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/api/version", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version error: status %d", resp.StatusCode)
	}

	var v struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return v.Version, nil
}

// HealthCheck checks if the runtime is reachable and responding.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return nil
}

// apiError extracts the runtime's {"error": "..."} message when present,
// falling back to the raw body.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(bytes.TrimSpace(body))
}
