package metrics

// TierTiming is the wall-clock cost of one escalation tier attempt.
type TierTiming struct {
	Method     string  `json:"method"`
	Seconds    float64 `json:"seconds"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached,omitempty"`
}

// PerformanceReport is the cost breakdown attached to escalation results and
// cache entries: how long each tier took, how much slower the run was than a
// single pass, and what the terminal method costs in compute terms.
type PerformanceReport struct {
	TierTimings    []TierTiming `json:"tier_timings,omitempty"`
	SpeedPenalty   float64      `json:"speed_penalty,omitempty"`
	CostClass      string       `json:"cost_class,omitempty"`
	ResourceNote   string       `json:"resource_note,omitempty"`
	RecommendedFor []string     `json:"recommended_for,omitempty"`
}
