package extraction

// Confidence scoring constants. The bonuses reward population density of the
// collections that matter most for quantity takeoff; the ceilings bound how
// much a sparse-but-present extraction can claim.
const (
	ConfidenceBase    = 0.60
	BeamBonus         = 0.10
	JoistBonus        = 0.10
	ScheduleBonus     = 0.10
	DimensionBonus    = 0.05
	SinglePassCeiling = 0.85
	EnsembleCeiling   = 0.95
)

// Score rates a record's population density on the single-pass scale.
func Score(rec *Record) float64 {
	return ScoreWithCeiling(rec, SinglePassCeiling)
}

// ScoreWithCeiling rates a record with a caller-supplied ceiling. A non
// positive ceiling falls back to the single-pass default.
func ScoreWithCeiling(rec *Record, ceiling float64) float64 {
	if ceiling <= 0 {
		ceiling = SinglePassCeiling
	}
	if rec == nil {
		return 0
	}

	score := ConfidenceBase
	if len(rec.Beams) > 0 {
		score += BeamBonus
	}
	if len(rec.Joists) > 0 {
		score += JoistBonus
	}
	if len(rec.Schedules) > 0 {
		score += ScheduleBonus
	}
	if len(rec.Dimensions) > 0 {
		score += DimensionBonus
	}

	if score > ceiling {
		return ceiling
	}
	return score
}
