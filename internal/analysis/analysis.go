// Package analysis wraps the optional computer-vision helper services: an
// image preprocessor and a structural grid counter. Both are adapters over
// small HTTP services and both degrade gracefully. A nil client or a failing
// service never blocks an extraction; the pipeline just works from the raw
// image without grid context.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
)

const defaultTimeout = 30 * time.Second

// Preprocessor cleans up drawing images (deskew, contrast, denoise) before
// they go to a vision model.
type Preprocessor struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPreprocessor creates a client for the preprocessing service. An empty
// URL returns nil; a nil Preprocessor passes images through unchanged.
func NewPreprocessor(url string, timeout time.Duration, logger *slog.Logger) *Preprocessor {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type enhanceRequest struct {
	Image string `json:"image"`
}

type enhanceResponse struct {
	Image   string   `json:"image"`
	Applied []string `json:"applied,omitempty"`
}

// Enhance returns a cleaned-up copy of image. Failures are logged and the
// original bytes come back, so callers never branch on preprocessing.
func (p *Preprocessor) Enhance(ctx context.Context, image []byte) []byte {
	if p == nil {
		return image
	}
	enhanced, err := p.enhance(ctx, image)
	if err != nil {
		p.logger.Warn("image preprocessing failed, using original", "error", err)
		return image
	}
	return enhanced
}

func (p *Preprocessor) enhance(ctx context.Context, image []byte) ([]byte, error) {
	body, err := json.Marshal(enhanceRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/enhance", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enhance error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var enhResp enhanceResponse
	if err := json.Unmarshal(respBody, &enhResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(enhResp.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("service returned an empty image")
	}
	return decoded, nil
}

// GridCounter reads structural grid lines off a plan sheet so the extraction
// prompt can reference real grid labels and bay counts.
type GridCounter struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGridCounter creates a client for the grid-analysis service. An empty
// URL returns nil; a nil GridCounter reports no grid.
func NewGridCounter(url string, timeout time.Duration, logger *slog.Logger) *GridCounter {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GridCounter{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type gridRequest struct {
	Image string `json:"image"`
}

type gridResponse struct {
	VerticalLabels   []string `json:"vertical_labels"`
	HorizontalLabels []string `json:"horizontal_labels"`
	BayCount         int      `json:"bay_count"`
	Confidence       float64  `json:"confidence"`
}

// Count returns the detected grid, or nil when the service is unavailable,
// fails, or sees no grid lines at all.
func (g *GridCounter) Count(ctx context.Context, image []byte) *extraction.GridInfo {
	if g == nil {
		return nil
	}
	grid, err := g.count(ctx, image)
	if err != nil {
		g.logger.Warn("grid detection failed", "error", err)
		return nil
	}
	return grid
}

func (g *GridCounter) count(ctx context.Context, image []byte) (*extraction.GridInfo, error) {
	body, err := json.Marshal(gridRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/grid", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("grid error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gridResp gridResponse
	if err := json.Unmarshal(respBody, &gridResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(gridResp.VerticalLabels) == 0 && len(gridResp.HorizontalLabels) == 0 {
		// The sheet has no detectable grid (detail sheets, schedules).
		return nil, nil
	}
	return &extraction.GridInfo{
		VerticalLabels:   gridResp.VerticalLabels,
		HorizontalLabels: gridResp.HorizontalLabels,
		BayCount:         gridResp.BayCount,
		Confidence:       gridResp.Confidence,
	}, nil
}
