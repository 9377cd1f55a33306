package repeating

import "strings"

// Row is one raw sheet row for deduplication, keyed by its dedup identity
// (typically patient + event number).
type Row struct {
	Key   string
	Cells []string
	// TermIdx points at the term column, or -1 when the sheet has none.
	TermIdx int
}

// popCount counts non-blank cells.
func popCount(cells []string) int {
	n := 0
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c != "" && !strings.EqualFold(c, "nan") {
			n++
		}
	}
	return n
}

func hasTerm(r Row) bool {
	if r.TermIdx < 0 || r.TermIdx >= len(r.Cells) {
		return false
	}
	v := strings.TrimSpace(r.Cells[r.TermIdx])
	return v != "" && !strings.EqualFold(v, "nan")
}

// better reports whether a should replace b as a key's surviving row: rows
// with a term outrank rows without, denser rows outrank sparser ones, and
// ties keep the earlier row (b).
func better(a, b Row) bool {
	at, bt := hasTerm(a), hasTerm(b)
	if at != bt {
		return at
	}
	return popCount(a.Cells) > popCount(b.Cells)
}

// Dedupe keeps the most informative row per key and drops the overflow
// duplicates the flattened export produces. Output preserves the relative
// input order of the survivors, and running Dedupe on its own output returns
// it unchanged.
func Dedupe(rows []Row) []Row {
	idx := DedupeIndexes(rows)
	out := make([]Row, 0, len(idx))
	for _, i := range idx {
		out = append(out, rows[i])
	}
	return out
}

// DedupeIndexes is Dedupe returning the surviving input positions instead of
// the rows, for callers that keep their data elsewhere.
func DedupeIndexes(rows []Row) []int {
	best := make(map[string]int, len(rows))
	for i, r := range rows {
		j, ok := best[r.Key]
		if !ok || better(r, rows[j]) {
			best[r.Key] = i
		}
	}
	keep := make(map[int]bool, len(best))
	for _, i := range best {
		keep[i] = true
	}
	out := make([]int, 0, len(best))
	for i := range rows {
		if keep[i] {
			out = append(out, i)
		}
	}
	return out
}
