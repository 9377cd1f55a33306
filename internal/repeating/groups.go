// Package repeating reconstructs repeating-group records (medications,
// medical history, adverse events) that the wide export flattens into
// pipe-delimited cells, and removes the overflow duplicates that flattening
// leaves behind.
package repeating

import (
	"strings"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// Field describes one sibling column of a repeating group.
type Field struct {
	// Fragment is matched as a substring of the column code.
	Fragment string
	// Name is the output field name.
	Name string
	// Date values get CleanDate applied per segment.
	Date bool
}

// GroupSpec describes a repeating group: the base column whose segments
// define the record count, and the sibling columns aligned to it by position.
type GroupSpec struct {
	// BaseFragment locates the base column (e.g. "CMTRT" for medications).
	BaseFragment string
	BaseName     string
	Fields       []Field
}

// Record is one reconstructed entry of a repeating group.
type Record struct {
	Index  int // 1-based position within the group
	Values map[string]string
}

// splitSegments splits a pipe-delimited cell into trimmed segments with nan
// placeholders blanked. Unlike the base column, sibling columns keep empty
// segments so positions stay aligned.
func splitSegments(raw string) []string {
	parts := strings.Split(raw, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.EqualFold(p, "nan") {
			p = ""
		}
		out[i] = p
	}
	return out
}

// Parse reconstructs the group's records from one table row. The base
// column's non-empty segments define the records; each sibling column is
// split the same way and its segment at the same index attached, empty when
// the sibling list is shorter. Returns nil when the base column is missing or
// holds no entries.
func (g GroupSpec) Parse(t *edc.Table, row int) []Record {
	baseCol := findCol(t, g.BaseFragment)
	if baseCol == "" {
		return nil
	}
	baseSegs := splitSegments(t.RawCell(row, baseCol))

	sibs := make(map[string][]string, len(g.Fields))
	for _, f := range g.Fields {
		col := findCol(t, f.Fragment)
		if col == "" {
			continue
		}
		sibs[f.Name] = splitSegments(t.RawCell(row, col))
	}

	var out []Record
	for i, base := range baseSegs {
		if base == "" {
			continue
		}
		rec := Record{Index: len(out) + 1, Values: map[string]string{g.BaseName: base}}
		for _, f := range g.Fields {
			segs, ok := sibs[f.Name]
			if !ok {
				continue
			}
			v := ""
			if i < len(segs) {
				v = segs[i]
			}
			if f.Date {
				v = edc.CleanDate(v)
			}
			rec.Values[f.Name] = v
		}
		out = append(out, rec)
	}
	return out
}

// ApplyOngoing overwrites the end-date field with "Ongoing" when the ongoing
// flag field is ticked.
func ApplyOngoing(rec Record, ongoingField, endDateField string) {
	switch strings.ToLower(strings.TrimSpace(rec.Values[ongoingField])) {
	case "yes", "y", "1", "true", "checked":
		rec.Values[endDateField] = "Ongoing"
	}
}

// ResolveOther substitutes the free-text "other" companion value when the
// coded field holds the literal "Other".
func ResolveOther(rec Record, codedField, otherField string) {
	if strings.EqualFold(strings.TrimSpace(rec.Values[codedField]), "other") {
		if other := strings.TrimSpace(rec.Values[otherField]); other != "" {
			rec.Values[codedField] = other
		}
	}
}

// findCol returns the first column whose code contains the fragment.
func findCol(t *edc.Table, fragment string) string {
	for _, h := range t.Header {
		if strings.Contains(h, fragment) {
			return h
		}
	}
	return ""
}
