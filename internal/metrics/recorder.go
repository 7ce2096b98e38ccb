package metrics

import (
	"sync"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// DefaultCapacity bounds the in-memory metric ring.
const DefaultCapacity = 1024

// Recorder holds recent metrics in a fixed-size ring. Appends never block
// inference; when the ring is full the oldest records fall off.
type Recorder struct {
	mu      sync.RWMutex
	entries []Metric
	next    int
	full    bool

	now func() time.Time
}

// NewRecorder creates a recorder retaining at most capacity metrics.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		entries: make([]Metric, capacity),
		now:     time.Now,
	}
}

// RecordOpts provides attribution for a metric recording.
type RecordOpts struct {
	RequestID   string
	Page        int
	Method      string // escalation tier
	Pass        int    // pass number within the tier
	ParseMethod string
}

// Record stores a single metric, stamping CreatedAt when the caller left it
// zero.
func (r *Recorder) Record(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	r.entries[r.next] = m
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// RecordVisionCall records metrics from a vision completion result.
func (r *Recorder) RecordVisionCall(opts RecordOpts, result *providers.VisionResult) {
	if result == nil {
		return
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = result.RequestID
	}

	r.Record(Metric{
		// Attribution
		RequestID:   requestID,
		Page:        opts.Page,
		Method:      opts.Method,
		Pass:        opts.Pass,
		ParseMethod: opts.ParseMethod,

		// Provider info
		Provider: result.Provider,
		Model:    result.ModelUsed,

		// Tokens
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,

		// Timing
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.TotalTime.Seconds(),

		// Status
		Success:   result.Success,
		ErrorType: result.ErrorType,
	})
}

// RecordCacheHit records a tier that was served from the result cache.
func (r *Recorder) RecordCacheHit(opts RecordOpts, duration time.Duration) {
	r.Record(Metric{
		RequestID:    opts.RequestID,
		Page:         opts.Page,
		Method:       opts.Method,
		TotalSeconds: duration.Seconds(),
		Success:      true,
		Cached:       true,
	})
}

// RecordError records a failed operation as a metric.
func (r *Recorder) RecordError(opts RecordOpts, provider, model, errorType string, duration time.Duration) {
	r.Record(Metric{
		RequestID: opts.RequestID,
		Page:      opts.Page,
		Method:    opts.Method,
		Pass:      opts.Pass,

		Provider: provider,
		Model:    model,

		TotalSeconds: duration.Seconds(),

		Success:   false,
		ErrorType: errorType,
	})
}

// Len reports how many metrics are currently retained.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Snapshot returns the retained metrics, oldest first.
func (r *Recorder) Snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]Metric, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Metric, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
