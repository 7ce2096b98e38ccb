package extraction

import (
	"regexp"
	"strings"
)

// Vision models reading low-resolution callouts confuse a small set of
// characters: O for 0, I and l for 1, and typographic quotes for the
// foot/inch marks. The fixers below are deterministic, idempotent, and
// scoped to recognized callout patterns so prose fields are left alone.

var (
	// W18x106, HSS6x6x3/8, C8x11.5, LVL1.75x11.875, PL1/2x6
	shapeCodeRe = regexp.MustCompile(`\b(HSS|LVL|PSL|MC|HP|PL|[WCLS])\s*([0-9OIl]+(?:[xX][0-9OIl/.\-]+)*)\b`)

	// Open-web joist designations: 24LH07, 16K4, 28DLH10
	joistCodeRe = regexp.MustCompile(`\b([0-9OIl]{1,3})(KCS|DLH|SLH|LH|K)([0-9OIl]{1,3})\b`)

	// Spacing notation: @ 16" O.C.
	spacingRe = regexp.MustCompile(`@\s*([0-9OIl]+)`)

	// Mark identifiers: B1, C2, J-10, F3
	markRe = regexp.MustCompile(`^([A-Za-z]{1,3})([-\s]?)([0-9OIl]+)$`)

	// Doubled single quotes standing in for an inch mark: 24'-0''
	doubledInchRe = regexp.MustCompile(`(\d)''`)

	quoteNormalizer = strings.NewReplacer(
		"‘", "'", // left single quote
		"’", "'", // right single quote
		"′", "'", // prime (feet)
		"“", `"`, // left double quote
		"”", `"`, // right double quote
		"″", `"`, // double prime (inches)
	)

	digitConfusions = strings.NewReplacer("O", "0", "I", "1", "l", "1")
)

// FixCallout repairs character confusions in one extracted string value.
func FixCallout(s string) string {
	if s == "" {
		return s
	}

	s = quoteNormalizer.Replace(s)
	s = doubledInchRe.ReplaceAllString(s, `$1"`)

	s = shapeCodeRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := shapeCodeRe.FindStringSubmatch(m)
		return strings.Replace(m, sub[2], digitConfusions.Replace(sub[2]), 1)
	})
	s = joistCodeRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := joistCodeRe.FindStringSubmatch(m)
		return digitConfusions.Replace(sub[1]) + sub[2] + digitConfusions.Replace(sub[3])
	})
	s = spacingRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := spacingRe.FindStringSubmatch(m)
		return strings.Replace(m, sub[1], digitConfusions.Replace(sub[1]), 1)
	})

	return s
}

// FixMark repairs a bare mark identifier, e.g. "BI" -> "B1".
func FixMark(mark string) string {
	mark = strings.TrimSpace(quoteNormalizer.Replace(mark))
	sub := markRe.FindStringSubmatch(mark)
	if sub == nil {
		return FixCallout(mark)
	}
	return sub[1] + sub[2] + digitConfusions.Replace(sub[3])
}

// ApplyCalloutFixes normalizes every extracted string field in place. Grid
// labels are deliberately excluded: a vertical label "I" is as likely a
// letter as a digit, and guessing would corrupt the grid.
func ApplyCalloutFixes(rec *Record) {
	if rec == nil {
		return
	}

	for _, name := range CategoryNames() {
		for _, entry := range rec.Category(name) {
			fixEntry(entry)
		}
	}

	for i := range rec.Schedules {
		rec.Schedules[i].ScheduleType = FixCallout(rec.Schedules[i].ScheduleType)
		for _, row := range rec.Schedules[i].Rows {
			fixEntry(row)
		}
	}

	for i := range rec.Dimensions {
		d := &rec.Dimensions[i]
		d.Value = FixCallout(d.Value)
		d.Location = FixCallout(d.Location)
		d.GridRef = FixCallout(d.GridRef)
		d.Element = FixCallout(d.Element)
	}

	for i := range rec.ItemCounts {
		rec.ItemCounts[i].Item = FixCallout(rec.ItemCounts[i].Item)
		rec.ItemCounts[i].Mark = FixMark(rec.ItemCounts[i].Mark)
	}
}

func fixEntry(m map[string]any) {
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == "mark" {
			m[k] = FixMark(s)
		} else {
			m[k] = FixCallout(s)
		}
	}
}
