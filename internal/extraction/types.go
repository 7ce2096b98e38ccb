// Package extraction defines the record types produced by vision extraction
// of construction drawing sheets, the tolerant parser that recovers them from
// model output, and the confidence scoring applied to them.
package extraction

import (
	"fmt"
	"strings"
)

// Entry is a loosely-typed extracted element keyed by its engineering mark.
// Fields beyond the mark are whatever the model reported (shape, size,
// length, spacing, camber, remarks); absent fields stay absent.
type Entry map[string]any

// Mark returns the entry's engineering mark, or "" when missing.
func (e Entry) Mark() string {
	return e.GetString("mark")
}

// GetString returns the value for key coerced to a string. Numeric JSON
// values are rendered without a trailing ".0" so "W18x106" and 106 compare
// sanely downstream.
func (e Entry) GetString(key string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// ScheduleBlock is one schedule table lifted from a sheet.
type ScheduleBlock struct {
	ScheduleType string           `json:"schedule_type,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	PageNumber   int              `json:"page_number,omitempty"`
}

// DimensionEntry is a dimension callout found on the sheet.
type DimensionEntry struct {
	Location string `json:"location,omitempty"`
	Value    string `json:"value"`
	GridRef  string `json:"grid_ref,omitempty"`
	Element  string `json:"element,omitempty"`
}

// ItemCount is a counted item annotation, e.g. "(12) 2x10 joists".
type ItemCount struct {
	Item  string `json:"item"`
	Mark  string `json:"mark,omitempty"`
	Count int    `json:"count"`
}

// GridInfo describes the structural grid of a plan sheet.
type GridInfo struct {
	VerticalLabels   []string `json:"vertical_labels,omitempty"`
	HorizontalLabels []string `json:"horizontal_labels,omitempty"`
	BayCount         int      `json:"bay_count,omitempty"`
	Confidence       float64  `json:"confidence,omitempty"`
}

// Bays derives the bay count from the grid labels. A grid with fewer than
// two lines in either direction has no complete bays.
func (g *GridInfo) Bays() int {
	if g == nil {
		return 0
	}
	if g.BayCount > 0 {
		return g.BayCount
	}
	v, h := len(g.VerticalLabels), len(g.HorizontalLabels)
	if v < 2 || h < 2 {
		return 0
	}
	return (v - 1) * (h - 1)
}

// Discrepancy severity tiers.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeverityMajor    = "major"

	// SourceScheduleVsCalculated tags a discrepancy between a schedule
	// total and a calculated total.
	SourceScheduleVsCalculated = "schedule_vs_calculated"
	// SourceMissingFromCalculation tags a schedule item with no calculated
	// counterpart at all.
	SourceMissingFromCalculation = "missing_from_calculation"
)

// QuantityDiscrepancy records a disagreement between a schedule-stated
// quantity and an independently calculated one. Difference is signed
// (calculated minus scheduled); PercentDiff is relative to the scheduled
// quantity.
type QuantityDiscrepancy struct {
	Item          string  `json:"item"`
	ScheduleQty   float64 `json:"schedule_qty"`
	CalculatedQty float64 `json:"calculated_qty"`
	Difference    float64 `json:"difference"`
	PercentDiff   float64 `json:"percent_diff"`
	Severity      string  `json:"severity"`
	Source        string  `json:"source"`
}

// Record is the unit of extracted knowledge for one page.
// The zero value is a valid empty record.
type Record struct {
	Schedules   []ScheduleBlock  `json:"schedules,omitempty"`
	Beams       []Entry          `json:"beams,omitempty"`
	Columns     []Entry          `json:"columns,omitempty"`
	Joists      []Entry          `json:"joists,omitempty"`
	Connections []Entry          `json:"connections,omitempty"`
	Foundations []Entry          `json:"foundations,omitempty"`
	Symbols     []Entry          `json:"symbols,omitempty"`
	Dimensions  []DimensionEntry `json:"dimensions,omitempty"`
	ItemCounts  []ItemCount      `json:"item_counts,omitempty"`
	Grid        *GridInfo        `json:"grid_info,omitempty"`

	Discrepancies []QuantityDiscrepancy `json:"discrepancies,omitempty"`

	PageNumber int `json:"page_number,omitempty"`

	// ParseMethod names the parse strategy that produced this record
	// (strict, repaired, salvage, markscan, empty).
	ParseMethod string `json:"parse_method,omitempty"`
}

// NewRecord returns an empty record for the given page.
func NewRecord(pageNumber int) *Record {
	return &Record{PageNumber: pageNumber}
}

// IsEmpty reports whether the record contains no extracted data at all.
func (r *Record) IsEmpty() bool {
	return len(r.Schedules) == 0 &&
		len(r.Beams) == 0 &&
		len(r.Columns) == 0 &&
		len(r.Joists) == 0 &&
		len(r.Connections) == 0 &&
		len(r.Foundations) == 0 &&
		len(r.Symbols) == 0 &&
		len(r.Dimensions) == 0 &&
		len(r.ItemCounts) == 0
}

// Clone returns a deep copy of the record. Shared records, such as cache
// index entries, must be cloned before a caller attaches per-request data.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r

	out.Beams = cloneEntries(r.Beams)
	out.Columns = cloneEntries(r.Columns)
	out.Joists = cloneEntries(r.Joists)
	out.Connections = cloneEntries(r.Connections)
	out.Foundations = cloneEntries(r.Foundations)
	out.Symbols = cloneEntries(r.Symbols)

	if r.Schedules != nil {
		out.Schedules = make([]ScheduleBlock, len(r.Schedules))
		for i, block := range r.Schedules {
			out.Schedules[i] = block
			if block.Rows != nil {
				rows := make([]map[string]any, len(block.Rows))
				for j, row := range block.Rows {
					rows[j] = cloneValue(row).(map[string]any)
				}
				out.Schedules[i].Rows = rows
			}
		}
	}
	if r.Dimensions != nil {
		out.Dimensions = make([]DimensionEntry, len(r.Dimensions))
		copy(out.Dimensions, r.Dimensions)
	}
	if r.ItemCounts != nil {
		out.ItemCounts = make([]ItemCount, len(r.ItemCounts))
		copy(out.ItemCounts, r.ItemCounts)
	}
	if r.Discrepancies != nil {
		out.Discrepancies = make([]QuantityDiscrepancy, len(r.Discrepancies))
		copy(out.Discrepancies, r.Discrepancies)
	}
	if r.Grid != nil {
		g := *r.Grid
		g.VerticalLabels = append([]string(nil), r.Grid.VerticalLabels...)
		g.HorizontalLabels = append([]string(nil), r.Grid.HorizontalLabels...)
		out.Grid = &g
	}
	return &out
}

// cloneEntries deep-copies a mark-keyed category.
func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry(cloneValue(map[string]any(e)).(map[string]any))
	}
	return out
}

// cloneValue deep-copies the JSON-shaped value trees entries are built from.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

// ScheduleRows flattens all schedule blocks into a single row list for
// quantity cross-checking.
func (r *Record) ScheduleRows() []map[string]any {
	var rows []map[string]any
	for _, block := range r.Schedules {
		rows = append(rows, block.Rows...)
	}
	return rows
}

// Counts summarizes collection sizes for logging.
func (r *Record) Counts() map[string]int {
	counts := make(map[string]int)
	for name, n := range map[string]int{
		"schedules":   len(r.Schedules),
		"beams":       len(r.Beams),
		"columns":     len(r.Columns),
		"joists":      len(r.Joists),
		"connections": len(r.Connections),
		"foundations": len(r.Foundations),
		"symbols":     len(r.Symbols),
		"dimensions":  len(r.Dimensions),
		"item_counts": len(r.ItemCounts),
	} {
		if n > 0 {
			counts[name] = n
		}
	}
	return counts
}

// categories returns the member collections that participate in mark-keyed
// voting, by field name.
func (r *Record) categories() map[string]*[]Entry {
	return map[string]*[]Entry{
		"beams":       &r.Beams,
		"columns":     &r.Columns,
		"joists":      &r.Joists,
		"connections": &r.Connections,
		"foundations": &r.Foundations,
		"symbols":     &r.Symbols,
	}
}

// Category returns the named member collection, or nil when the name is not
// a mark-keyed category.
func (r *Record) Category(name string) []Entry {
	if p, ok := r.categories()[name]; ok {
		return *p
	}
	return nil
}

// SetCategory replaces the named member collection. Unknown names are
// ignored.
func (r *Record) SetCategory(name string, entries []Entry) {
	if p, ok := r.categories()[name]; ok {
		*p = entries
	}
}

// CategoryNames lists the mark-keyed member categories in a stable order.
func CategoryNames() []string {
	return []string{"beams", "columns", "joists", "connections", "foundations", "symbols"}
}

// NormalizeMark canonicalizes an item key for voting and cross-checking:
// uppercase with all whitespace and punctuation stripped.
func NormalizeMark(mark string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(mark) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
