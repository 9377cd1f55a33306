package edc

import "strings"

// Table is an immutable in-memory view of one exported sheet: a header row
// plus data rows of raw string cells. Lookups by column name are
// case-sensitive exact matches on the trimmed header.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a Table and its column index. Duplicate header names keep
// the first occurrence.
func NewTable(name string, header []string, rows [][]string) *Table {
	t := &Table{Name: name, Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		t.Header[i] = h
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	return t
}

// Col returns the index of the named column.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasCol reports whether the named column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the cleaned value at (row, column name); empty string when the
// column is missing or the row is short.
func (t *Table) Cell(row int, name string) string {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if i >= len(r) {
		return ""
	}
	return Clean(r[i])
}

// RawCell returns the uncleaned value at (row, column name).
func (t *Table) RawCell(row int, name string) string {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if i >= len(r) {
		return ""
	}
	return r[i]
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// FirstCol returns the index of the first column whose name matches any of
// the given candidates, tried in order.
func (t *Table) FirstCol(candidates ...string) (int, bool) {
	for _, c := range candidates {
		if i, ok := t.index[c]; ok {
			return i, ok
		}
	}
	return 0, false
}
