// Package crosscheck compares schedule-stated quantities against
// independently calculated ones and classifies the disagreements by
// severity. It has no dependency on the extraction ladder and can run
// against any record regardless of which tier produced it.
package crosscheck

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
)

// CalculatedQuantity is one independently derived quantity for an item,
// typically produced by a takeoff pass or a member count outside this
// package.
type CalculatedQuantity struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Source   string  `json:"source,omitempty"`
}

// Options holds the severity thresholds in percent. Differences at or below
// MinorPct are suppressed entirely. Zero values fall back to the defaults.
type Options struct {
	MinorPct    float64
	ModeratePct float64
}

// DefaultOptions returns the product-tuned thresholds: 5% minor, 20%
// moderate.
func DefaultOptions() Options {
	return Options{MinorPct: 5, ModeratePct: 20}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinorPct <= 0 {
		o.MinorPct = d.MinorPct
	}
	if o.ModeratePct <= 0 {
		o.ModeratePct = d.ModeratePct
	}
	return o
}

// markHeaders are the row fields tried, in order, as the item identifier.
var markHeaders = []string{"mark", "item", "label", "designation"}

// quantityHeaders are the row fields tried, in order, as the stated
// quantity.
var quantityHeaders = []string{"qty", "quantity", "count", "total", "no", "no.", "pieces", "pcs", "ea"}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// tally accumulates a quantity per normalized key, remembering the first raw
// label seen so output stays readable.
type tally struct {
	label string
	qty   float64
}

// CrossCheck joins schedule rows against calculated quantities by normalized
// mark and returns the discrepancies, sorted descending by percent
// difference. Items only present on the calculated side are ignored; items
// only present on the schedule side are always reported as major. The
// function is pure: it never mutates its inputs and always returns a
// non-nil slice.
func CrossCheck(scheduleRows []map[string]any, calculated []CalculatedQuantity, opts Options) []extraction.QuantityDiscrepancy {
	opts = opts.withDefaults()

	scheduled := make(map[string]*tally)
	for _, row := range scheduleRows {
		label := rowMark(row)
		key := extraction.NormalizeMark(label)
		if key == "" {
			continue
		}
		t := scheduled[key]
		if t == nil {
			t = &tally{label: label}
			scheduled[key] = t
		}
		t.qty += rowQuantity(row)
	}

	calc := make(map[string]float64)
	for _, cq := range calculated {
		key := extraction.NormalizeMark(cq.Item)
		if key == "" {
			continue
		}
		calc[key] += cq.Quantity
	}

	discrepancies := make([]extraction.QuantityDiscrepancy, 0)
	for key, sched := range scheduled {
		if sched.qty <= 0 {
			// A stated quantity of zero is an annotation, not a count:
			// no percent base, and nothing for a takeoff to miss.
			continue
		}
		calcQty, ok := calc[key]
		if !ok {
			discrepancies = append(discrepancies, extraction.QuantityDiscrepancy{
				Item:          sched.label,
				ScheduleQty:   sched.qty,
				CalculatedQty: 0,
				Difference:    -sched.qty,
				PercentDiff:   100,
				Severity:      extraction.SeverityMajor,
				Source:        extraction.SourceMissingFromCalculation,
			})
			continue
		}
		pct := math.Abs(sched.qty-calcQty) / sched.qty * 100
		if pct <= opts.MinorPct {
			continue
		}
		discrepancies = append(discrepancies, extraction.QuantityDiscrepancy{
			Item:          sched.label,
			ScheduleQty:   sched.qty,
			CalculatedQty: calcQty,
			Difference:    calcQty - sched.qty,
			PercentDiff:   pct,
			Severity:      severityFor(pct, opts),
			Source:        extraction.SourceScheduleVsCalculated,
		})
	}

	sort.Slice(discrepancies, func(i, j int) bool {
		if discrepancies[i].PercentDiff != discrepancies[j].PercentDiff {
			return discrepancies[i].PercentDiff > discrepancies[j].PercentDiff
		}
		return discrepancies[i].Item < discrepancies[j].Item
	})
	return discrepancies
}

func severityFor(pct float64, opts Options) string {
	switch {
	case pct <= opts.MinorPct:
		return extraction.SeverityMinor
	case pct <= opts.ModeratePct:
		return extraction.SeverityModerate
	default:
		return extraction.SeverityMajor
	}
}

// rowMark returns the item identifier for a schedule row, trying the
// conventional header names case-insensitively.
func rowMark(row map[string]any) string {
	entry := extraction.Entry(row)
	for _, h := range markHeaders {
		if s := entry.GetString(fieldKey(row, h)); s != "" {
			return s
		}
	}
	return ""
}

// rowQuantity extracts a best-effort stated quantity from a schedule row.
// Rows with no recognizable quantity column count as 1 item each.
func rowQuantity(row map[string]any) float64 {
	for _, h := range quantityHeaders {
		v, ok := field(row, h)
		if !ok {
			continue
		}
		if q, ok := parseQuantity(v); ok {
			return q
		}
	}
	return 1
}

// field looks a header up case-insensitively, tolerating padded keys like
// "Qty " from sloppy table extraction.
func field(row map[string]any, name string) (any, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return v, true
		}
	}
	return nil, false
}

// fieldKey returns the actual map key matching name, for GetString lookups.
func fieldKey(row map[string]any, name string) string {
	if _, ok := row[name]; ok {
		return name
	}
	for k := range row {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return k
		}
	}
	return name
}

// parseQuantity coerces a schedule cell into a number, pulling digits out of
// text like "(12)" or "12 pcs".
func parseQuantity(v any) (float64, bool) {
	switch q := v.(type) {
	case float64:
		return q, true
	case int:
		return float64(q), true
	case string:
		if m := numberPattern.FindString(q); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
