// Package metrics provides usage tracking for vision inference calls.
package metrics

import "time"

// Metric represents a single recorded inference call. Metrics are
// append-only records held in a bounded in-memory ring with full attribution.
type Metric struct {
	// Attribution (for filtering/aggregation)
	RequestID   string `json:"request_id,omitempty"`
	Page        int    `json:"page,omitempty"`
	Method      string `json:"method,omitempty"`       // escalation tier
	Pass        int    `json:"pass,omitempty"`         // pass number within the tier
	ParseMethod string `json:"parse_method,omitempty"` // how the response text was recovered

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Tokens
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`

	// Status
	Success   bool   `json:"success"`
	Cached    bool   `json:"cached,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	// Metadata
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ToMap converts the metric to a map for JSON output.
func (m *Metric) ToMap() map[string]any {
	data := map[string]any{
		"success":    m.Success,
		"created_at": m.CreatedAt.Format(time.RFC3339),
	}

	// Attribution
	if m.RequestID != "" {
		data["request_id"] = m.RequestID
	}
	if m.Page > 0 {
		data["page"] = m.Page
	}
	if m.Method != "" {
		data["method"] = m.Method
	}
	if m.Pass > 0 {
		data["pass"] = m.Pass
	}
	if m.ParseMethod != "" {
		data["parse_method"] = m.ParseMethod
	}

	// Provider
	if m.Provider != "" {
		data["provider"] = m.Provider
	}
	if m.Model != "" {
		data["model"] = m.Model
	}

	// Tokens
	if m.PromptTokens > 0 {
		data["prompt_tokens"] = m.PromptTokens
	}
	if m.CompletionTokens > 0 {
		data["completion_tokens"] = m.CompletionTokens
	}
	if m.TotalTokens > 0 {
		data["total_tokens"] = m.TotalTokens
	}

	// Timing
	if m.ExecutionSeconds > 0 {
		data["execution_seconds"] = m.ExecutionSeconds
	}
	if m.TotalSeconds > 0 {
		data["total_seconds"] = m.TotalSeconds
	}

	// Status
	if m.Cached {
		data["cached"] = true
	}
	if m.ErrorType != "" {
		data["error_type"] = m.ErrorType
	}

	return data
}
