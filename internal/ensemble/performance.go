package ensemble

import (
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
)

// Cost classes reported per escalation method.
const (
	CostLow    = "low"
	CostMedium = "medium"
	CostHigh   = "high"
)

// accuracyMultipliers scale confidence into the estimated-accuracy figure
// reported alongside it.
var accuracyMultipliers = map[string]float64{
	MethodSingle:       0.90,
	MethodMultiPass:    0.95,
	MethodMultiModel:   0.97,
	MethodFullEnsemble: 1.00,
}

// EstimatedAccuracy scales a confidence score by the method's accuracy
// multiplier. Unknown methods rate as single-pass.
func EstimatedAccuracy(method string, confidence float64) float64 {
	mult, ok := accuracyMultipliers[method]
	if !ok {
		mult = accuracyMultipliers[MethodSingle]
	}
	return confidence * mult
}

// CostClass buckets a method by inference spend.
func CostClass(method string) string {
	switch method {
	case MethodSingle:
		return CostLow
	case MethodMultiPass:
		return CostMedium
	default:
		return CostHigh
	}
}

// ResourceNote describes what a method demands from the runtime host.
func ResourceNote(method string) string {
	switch method {
	case MethodSingle:
		return "one model resident; lowest VRAM and disk footprint"
	case MethodMultiPass:
		return "one model resident; inference time grows linearly with pass count"
	case MethodMultiModel:
		return "every distinct model pulled and resident; expect several GB of disk per model"
	default:
		return "multi-pass and multi-model back to back; all models resident plus the combination step"
	}
}

// RecommendedFor lists the use cases a method is tuned for.
func RecommendedFor(method string) []string {
	switch method {
	case MethodSingle:
		return []string{"quick previews", "low-stakes sheets", "interactive browsing"}
	case MethodMultiPass:
		return []string{"standard takeoff", "schedule-heavy sheets"}
	case MethodMultiModel:
		return []string{"bid-critical quantities", "poor scan quality"}
	default:
		return []string{"final takeoff review", "dispute resolution"}
	}
}

// SpeedPenalty is the cumulative tier time relative to the single-pass
// baseline. When the run has no computed single-pass timing (capped ladder,
// or the tier came from cache) there is no baseline and the penalty is 1.
func SpeedPenalty(timings []metrics.TierTiming) float64 {
	var total, baseline float64
	for _, t := range timings {
		total += t.Seconds
		if t.Method == MethodSingle && !t.Cached {
			baseline = t.Seconds
		}
	}
	if baseline <= 0 {
		return 1.0
	}
	return total / baseline
}

// BuildReport assembles the performance block for a ladder run that ended at
// method.
func BuildReport(method string, timings []metrics.TierTiming) metrics.PerformanceReport {
	return metrics.PerformanceReport{
		TierTimings:    timings,
		SpeedPenalty:   SpeedPenalty(timings),
		CostClass:      CostClass(method),
		ResourceNote:   ResourceNote(method),
		RecommendedFor: RecommendedFor(method),
	}
}
