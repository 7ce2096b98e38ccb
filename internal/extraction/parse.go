package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Parse method names recorded on the returned record.
const (
	ParseStrict   = "strict"
	ParseRepaired = "repaired"
	ParseSalvage  = "salvage"
	ParseMarkScan = "markscan"
	ParseEmpty    = "empty"
)

// parseStrategy attempts to decode model output into a record. A false
// return means the next strategy should run.
type parseStrategy struct {
	name string
	fn   func(text string) (*Record, bool)
}

// Parse converts raw vision-model output into a Record. It never fails: on
// totally unusable input it returns an empty record. Strategies run in order
// of decreasing strictness, and the first success wins.
func Parse(raw string, pageNumber int) *Record {
	text := strings.TrimSpace(raw)
	if text == "" {
		rec := NewRecord(pageNumber)
		rec.ParseMethod = ParseEmpty
		return rec
	}

	if stripped := stripCodeFences(text); stripped != "" {
		text = stripped
	}
	span := JSONSpan(text)

	strategies := []parseStrategy{
		{ParseStrict, func(string) (*Record, bool) { return parseStrict(span) }},
		{ParseRepaired, func(string) (*Record, bool) { return parseRepaired(span) }},
		{ParseSalvage, parseSalvage},
		{ParseMarkScan, parseMarkScan},
	}

	for _, s := range strategies {
		if rec, ok := s.fn(text); ok {
			rec.PageNumber = pageNumber
			rec.ParseMethod = s.name
			ApplyCalloutFixes(rec)
			return rec
		}
	}

	rec := NewRecord(pageNumber)
	rec.ParseMethod = ParseEmpty
	return rec
}

// JSONSpan returns the payload span Parse hands to the strict decoder: code
// fences stripped, outermost {...} extracted. Callers use it to validate the
// same bytes the parser saw.
func JSONSpan(raw string) string {
	text := strings.TrimSpace(raw)
	if stripped := stripCodeFences(text); stripped != "" {
		text = stripped
	}
	return extractObjectSpan(text)
}

// stripCodeFences removes a surrounding markdown code fence, returning ""
// when the input is not fenced.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractObjectSpan returns the outermost {...} span, or the input unchanged
// when no complete span exists (truncated output still feeds salvage).
func extractObjectSpan(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return text
	}
	return strings.TrimSpace(text[start : end+1])
}

func parseStrict(text string) (*Record, bool) {
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func parseRepaired(text string) (*Record, bool) {
	repaired := repairText(text)
	if repaired == text {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(repaired), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

var (
	tripleQuoteRe   = regexp.MustCompile(`"{3,}`)
	danglingEmptyRe = regexp.MustCompile(`,\s*""\s*([}\]])`)
	escapedInchRe   = regexp.MustCompile(`(\d)\s*\\"`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjRe   = regexp.MustCompile(`}\s*{`)
)

// repairText applies deterministic fixes for known model failure modes.
// Every rewrite is textual; nothing here inspects JSON structure.
func repairText(text string) string {
	// Stray control characters break the decoder even inside strings.
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20:
			// removed
		default:
			b.WriteRune(r)
		}
	}
	text = b.String()

	// Escaped inch marks inside dimension strings, e.g. 24'-0\" -> 24'-0″.
	// The double-prime survives decoding and is normalized back to a
	// straight quote by the callout fixer.
	text = escapedInchRe.ReplaceAllString(text, "$1″")
	// Collapsed triple quotes from runaway escaping.
	text = tripleQuoteRe.ReplaceAllString(text, `"`)
	// Dangling empty-string artifacts before a closing bracket.
	text = danglingEmptyRe.ReplaceAllString(text, "$1")
	// Trailing commas and unquoted-adjacent object boundaries.
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = adjacentObjRe.ReplaceAllString(text, "},{")

	return text
}

// fieldArrayRe locates the start of a known top-level collection.
var fieldArrayRe = regexp.MustCompile(`"(schedules|beams|columns|joists|connections|foundations|symbols|dimensions|item_counts)"\s*:\s*\[`)

// parseSalvage recovers complete objects from damaged or truncated arrays,
// bucketing each under the field name it appeared beneath.
func parseSalvage(text string) (*Record, bool) {
	matches := fieldArrayRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	rec := &Record{}
	found := false
	for _, m := range matches {
		field := text[m[2]:m[3]]
		rest := text[m[1]:]
		for _, objText := range scanArrayObjects(rest) {
			obj, ok := decodeObject(objText)
			if !ok {
				continue
			}
			if addToField(rec, field, obj) {
				found = true
			}
		}
	}

	if !found {
		return nil, false
	}
	return rec, true
}

// scanArrayObjects walks an array body collecting every complete top-level
// object, stopping at the array's closing bracket or at truncation.
func scanArrayObjects(text string) []string {
	var objects []string
	depth := 0
	inString := false
	escaped := false
	objStart := -1

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart >= 0 {
				objects = append(objects, text[objStart:i+1])
				objStart = -1
			}
		case ']':
			if depth == 0 {
				return objects
			}
		}
	}
	return objects
}

// decodeObject parses a single object, retrying with textual repairs.
func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, true
	}
	repaired := repairText(text)
	if err := json.Unmarshal([]byte(repaired), &obj); err == nil {
		return obj, true
	}
	return nil, false
}

// addToField places a salvaged object into the record collection named by
// field. Returns false when the object cannot serve that collection.
func addToField(rec *Record, field string, obj map[string]any) bool {
	switch field {
	case "schedules":
		block := scheduleFromMap(obj)
		if block.ScheduleType == "" && len(block.Rows) == 0 {
			return false
		}
		rec.Schedules = append(rec.Schedules, block)
	case "dimensions":
		d := dimensionFromMap(obj)
		if d.Value == "" && d.Location == "" {
			return false
		}
		rec.Dimensions = append(rec.Dimensions, d)
	case "item_counts":
		ic, ok := itemCountFromMap(obj)
		if !ok {
			return false
		}
		rec.ItemCounts = append(rec.ItemCounts, ic)
	default:
		entry := Entry(obj)
		rec.SetCategory(field, append(rec.Category(field), entry))
	}
	return true
}

func scheduleFromMap(obj map[string]any) ScheduleBlock {
	block := ScheduleBlock{
		ScheduleType: Entry(obj).GetString("schedule_type"),
	}
	if block.ScheduleType == "" {
		block.ScheduleType = Entry(obj).GetString("type")
	}
	if n, ok := obj["page_number"].(float64); ok {
		block.PageNumber = int(n)
	}
	if rows, ok := obj["rows"].([]any); ok {
		for _, r := range rows {
			if row, ok := r.(map[string]any); ok {
				block.Rows = append(block.Rows, row)
			}
		}
	}
	return block
}

func dimensionFromMap(obj map[string]any) DimensionEntry {
	e := Entry(obj)
	return DimensionEntry{
		Location: e.GetString("location"),
		Value:    e.GetString("value"),
		GridRef:  e.GetString("grid_ref"),
		Element:  e.GetString("element"),
	}
}

func itemCountFromMap(obj map[string]any) (ItemCount, bool) {
	e := Entry(obj)
	ic := ItemCount{
		Item: e.GetString("item"),
		Mark: e.GetString("mark"),
	}
	switch v := obj["count"].(type) {
	case float64:
		ic.Count = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return ic, false
		}
		ic.Count = n
	default:
		return ic, false
	}
	if ic.Item == "" && ic.Mark == "" {
		return ic, false
	}
	return ic, true
}

// parseMarkScan is the last resort: collect every balanced object carrying a
// mark key anywhere in the text, bucketed by the mark's prefix letter.
func parseMarkScan(text string) (*Record, bool) {
	rec := &Record{}
	found := false
	i := 0
	for i < len(text) {
		if text[i] != '{' {
			i++
			continue
		}
		objText, length := balancedObjectAt(text[i:])
		if length == 0 {
			i++
			continue
		}
		obj, ok := decodeObject(objText)
		if !ok {
			i++
			continue
		}
		mark := Entry(obj).Mark()
		if mark == "" {
			// No mark at this level; descend in case one is nested.
			i++
			continue
		}
		field := categoryForMark(mark)
		rec.SetCategory(field, append(rec.Category(field), Entry(obj)))
		found = true
		i += length
	}

	if !found {
		return nil, false
	}
	return rec, true
}

// categoryForMark buckets a bare mark by its conventional prefix letter.
// Anything unrecognized lands in symbols rather than being dropped.
func categoryForMark(mark string) string {
	normalized := NormalizeMark(mark)
	if normalized == "" {
		return "symbols"
	}
	switch normalized[0] {
	case 'B':
		return "beams"
	case 'C':
		return "columns"
	case 'J':
		return "joists"
	default:
		return "symbols"
	}
}

// balancedObjectAt returns the balanced {...} starting at text[0] and its
// byte length, or ("", 0) when the object never closes.
func balancedObjectAt(text string) (string, int) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1], i + 1
			}
		}
	}
	return "", 0
}
