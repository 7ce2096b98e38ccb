package metrics

import "sort"

// CallStats aggregates the calls sharing one dimension value.
type CallStats struct {
	Calls          int     `json:"calls"`
	Successes      int     `json:"successes"`
	Failures       int     `json:"failures"`
	TotalTokens    int     `json:"total_tokens"`
	TotalSeconds   float64 `json:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds"`
}

// Summary provides a summary of metrics for a filter.
type Summary struct {
	Count        int     `json:"count"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	CacheHits    int     `json:"cache_hits"`
	TotalTokens  int     `json:"total_tokens"`
	AvgSeconds   float64 `json:"avg_seconds"`

	// Latency percentiles (seconds)
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`

	ByModel  map[string]CallStats `json:"by_model,omitempty"`
	ByMethod map[string]CallStats `json:"by_method,omitempty"`
}

// GetSummary returns a summary of retained metrics matching the filter.
func (r *Recorder) GetSummary(f Filter) Summary {
	metrics := r.List(f, 0)

	s := Summary{
		Count:    len(metrics),
		ByModel:  make(map[string]CallStats),
		ByMethod: make(map[string]CallStats),
	}

	var latencies []float64
	var totalSeconds float64
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		if m.Cached {
			s.CacheHits++
		}
		s.TotalTokens += m.TotalTokens
		totalSeconds += m.TotalSeconds

		if m.TotalSeconds > 0 {
			latencies = append(latencies, m.TotalSeconds)
		}
		if m.Model != "" {
			s.ByModel[m.Model] = accumulate(s.ByModel[m.Model], m)
		}
		if m.Method != "" {
			s.ByMethod[m.Method] = accumulate(s.ByMethod[m.Method], m)
		}
	}

	if s.Count > 0 {
		s.AvgSeconds = totalSeconds / float64(s.Count)
	}
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
		s.LatencyP99 = percentile(latencies, 99)
	}

	return s
}

func accumulate(stats CallStats, m Metric) CallStats {
	stats.Calls++
	if m.Success {
		stats.Successes++
	} else {
		stats.Failures++
	}
	stats.TotalTokens += m.TotalTokens
	stats.TotalSeconds += m.TotalSeconds
	stats.AverageSeconds = stats.TotalSeconds / float64(stats.Calls)
	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Calculate the index
	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
