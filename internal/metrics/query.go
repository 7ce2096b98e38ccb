package metrics

import "time"

// Filter narrows which retained metrics a query sees. Zero-valued fields
// match everything.
type Filter struct {
	RequestID string
	Method    string
	Provider  string
	Model     string
	After     time.Time
	Before    time.Time
	Success   *bool // nil = any, true = success only, false = errors only
}

func (f Filter) matches(m Metric) bool {
	if f.RequestID != "" && m.RequestID != f.RequestID {
		return false
	}
	if f.Method != "" && m.Method != f.Method {
		return false
	}
	if f.Provider != "" && m.Provider != f.Provider {
		return false
	}
	if f.Model != "" && m.Model != f.Model {
		return false
	}
	if !f.After.IsZero() && !m.CreatedAt.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !m.CreatedAt.Before(f.Before) {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	return true
}

// List returns retained metrics matching the filter, oldest first. A limit
// of 0 means unlimited.
func (r *Recorder) List(f Filter, limit int) []Metric {
	var out []Metric
	for _, m := range r.Snapshot() {
		if !f.matches(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
