package ensemble

import (
	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
)

// Weighted-ensemble tuning constants. These are product-tuned values with no
// derivation; they are named here so the voting structure can be tested
// independently of the numbers.
const (
	MultiPassWeight  = 1.2
	MultiModelWeight = 1.0
	RetainThreshold  = 1.0
	EnsembleBonus    = 0.05
)

// VotedCategories are merged entry-by-entry by weighted voting. Every other
// collection transfers wholesale from the higher-confidence source.
var VotedCategories = []string{"beams", "joists"}

// Combine merges a multi-pass result and a multi-model result into the
// full-ensemble record. Per voted category, the multi-pass side contributes
// its agreement score times MultiPassWeight for each of its marks and the
// multi-model side contributes its confidence times MultiModelWeight; a mark
// survives when the accumulated vote reaches RetainThreshold, taking field
// values from whichever side voted harder. Returns the merged record and
// the combined confidence: the mean of the two source confidences plus
// EnsembleBonus, capped at ceiling.
func Combine(mp MultiPassResult, mm MultiModelResult, pageNumber int, ceiling float64) (*extraction.Record, float64) {
	merged := extraction.NewRecord(pageNumber)
	if mp.Failed() && mm.Failed() {
		return merged, 0
	}

	mpVote := mp.Agreement * MultiPassWeight
	mmVote := mm.Confidence * MultiModelWeight

	for _, cat := range VotedCategories {
		type candidate struct {
			mpEntry extraction.Entry
			mmEntry extraction.Entry
			total   float64
		}
		var order []string
		byKey := make(map[string]*candidate)

		collect := func(rec *extraction.Record, vote float64, fromMP bool) {
			if rec == nil {
				return
			}
			seen := make(map[string]bool)
			for _, e := range rec.Category(cat) {
				key := extraction.NormalizeMark(e.Mark())
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				c := byKey[key]
				if c == nil {
					c = &candidate{}
					byKey[key] = c
					order = append(order, key)
				}
				c.total += vote
				if fromMP {
					c.mpEntry = e
				} else {
					c.mmEntry = e
				}
			}
		}
		collect(mp.Record, mpVote, true)
		collect(mm.Record, mmVote, false)

		var kept []extraction.Entry
		for _, key := range order {
			c := byKey[key]
			if c.total < RetainThreshold {
				continue
			}
			switch {
			case c.mpEntry != nil && (c.mmEntry == nil || mpVote >= mmVote):
				kept = append(kept, c.mpEntry)
			default:
				kept = append(kept, c.mmEntry)
			}
		}
		if len(kept) > 0 {
			merged.SetCategory(cat, kept)
		}
	}

	// Everything else follows the stronger source wholesale. Ties go to the
	// multi-pass side.
	winner := mp.Record
	if mm.Confidence > mp.Confidence {
		winner = mm.Record
	}
	if winner != nil {
		for _, cat := range extraction.CategoryNames() {
			if voted(cat) {
				continue
			}
			if entries := winner.Category(cat); len(entries) > 0 {
				merged.SetCategory(cat, entries)
			}
		}
		copyUnvoted(merged, winner)
	}

	if ceiling <= 0 {
		ceiling = extraction.EnsembleCeiling
	}
	conf := (mp.Confidence+mm.Confidence)/2 + EnsembleBonus
	if conf > ceiling {
		conf = ceiling
	}
	return merged, conf
}

func voted(cat string) bool {
	for _, v := range VotedCategories {
		if v == cat {
			return true
		}
	}
	return false
}
