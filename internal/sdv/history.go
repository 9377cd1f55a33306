package sdv

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// FormEntry is the most recent status-history row for one
// (patient, activity, form, repeat) group.
type FormEntry struct {
	EntryStatus string // Data Entry Status ("Created", "EntryCompleted", ...)
	VerStatus   string // Verification Status at the latest row
	User        string
	Time        time.Time
}

// VerificationEvent records the action that put a form into the verified
// state, isolated from any later approval rows.
type VerificationEvent struct {
	User string
	Time time.Time
}

// historyRow is one parsed status-history line.
type historyRow struct {
	Patient     string
	Site        string
	Activity    string
	Form        string
	Repeat      string
	EntryStatus string
	VerStatus   string
	User        string
	Time        time.Time
}

// HistoryIndex holds the parsed form status history.
type HistoryIndex struct {
	// entries maps "patient|activity|form|repeat" to the group's latest row.
	entries map[string]FormEntry
	// verifications maps the same key to the most recent transition into
	// the verified state.
	verifications map[string]VerificationEvent
	// rows keeps every valid history line for activity reporting.
	rows []historyRow

	log zerolog.Logger
}

// Verification state keywords. "NotYetVerified" contains "Verified" as a
// substring and must be rejected explicitly. Approval states are a separate
// workflow stage and never count as verification.
var (
	verifiedKeywords = []string{"Verified", "Verified by a single action", "Re-verified", "Re-verified by a single action"}
	approvalKeywords = []string{"Approved", "AutoApproved", "Approved by a single action", "Locked"}
)

func isVerifiedStatus(s string) bool {
	if strings.Contains(s, "NotYetVerified") {
		return false
	}
	for _, k := range verifiedKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// headerTargets are the column names expected on the history header row. The
// export tool prepends a variable number of metadata lines, so the header is
// located by scanning for a row holding at least two of these.
var headerTargets = []string{"Scr #", "Subject", "Subject Screening #", "Activity", "Event", "Visit"}

const headerScanRows = 50

// findHeaderRow scans the first rows for the header line. Falls back to row 0
// when no candidate matches.
func findHeaderRow(rows [][]string, log zerolog.Logger) int {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		vals := make(map[string]bool, len(rows[i]))
		for _, v := range rows[i] {
			vals[strings.TrimSpace(v)] = true
		}
		matches := 0
		for _, t := range headerTargets {
			if vals[t] {
				matches++
			}
		}
		if matches >= 2 {
			if i > 0 {
				log.Debug().Int("row", i).Msg("status history header found below metadata rows")
			}
			return i
		}
	}
	log.Warn().Msg("could not identify status history header row, using row 0")
	return 0
}

var historyTimeLayouts = []string{
	"02-Jan-2006 15:04:05 (UTC)",
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseHistoryTime(date, clock string) (time.Time, bool) {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	s = strings.TrimSpace(s)
	for _, l := range historyTimeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeRepeat maps blank and null repeat markers to "0" and strips the
// float suffix numeric round-tripping adds.
func normalizeRepeat(s string) string {
	s = edc.StripFloatSuffix(edc.Clean(s))
	if s == "" {
		return "0"
	}
	return s
}

func historyKey(patient, activity, form, repeat string) string {
	return patient + "|" + activity + "|" + form + "|" + repeat
}

// NewHistoryIndex parses the raw status-history sheet. Rows whose timestamp
// does not parse are dropped; the index is empty but valid for a sheet with
// no usable rows.
func NewHistoryIndex(rows [][]string, log zerolog.Logger) *HistoryIndex {
	h := &HistoryIndex{
		entries:       make(map[string]FormEntry),
		verifications: make(map[string]VerificationEvent),
		log:           log,
	}
	if len(rows) == 0 {
		return h
	}
	headerIdx := findHeaderRow(rows, log)
	t := edc.NewTable("history", rows[headerIdx], rows[headerIdx+1:])

	patientCol := "Scr #"
	if !t.HasCol(patientCol) {
		if t.HasCol("Subject Screening #") {
			patientCol = "Subject Screening #"
		} else if t.HasCol("Subject") {
			patientCol = "Subject"
		}
	}
	activityCol := "Activity"
	if !t.HasCol(activityCol) && t.HasCol("Visit") {
		activityCol = "Visit"
	}
	siteCol := "Site #"
	if !t.HasCol(siteCol) {
		siteCol = "Site"
	}

	dropped := 0
	for i := 0; i < t.NumRows(); i++ {
		ts, ok := parseHistoryTime(t.Cell(i, "Date"), t.Cell(i, "Time"))
		if !ok {
			dropped++
			continue
		}
		h.rows = append(h.rows, historyRow{
			Patient:     t.Cell(i, patientCol),
			Site:        t.Cell(i, siteCol),
			Activity:    t.Cell(i, activityCol),
			Form:        t.Cell(i, "Form"),
			Repeat:      normalizeRepeat(t.Cell(i, "Repeatable form #")),
			EntryStatus: t.Cell(i, "Data Entry Status"),
			VerStatus:   t.Cell(i, "Verification Status"),
			User:        t.Cell(i, "User"),
			Time:        ts,
		})
	}
	if dropped > 0 {
		h.log.Debug().Int("dropped", dropped).Msg("status history rows without parseable timestamp")
	}
	h.buildIndexes()
	h.log.Info().Int("groups", len(h.entries)).Int("verifications", len(h.verifications)).
		Msg("status history indexed")
	return h
}

func (h *HistoryIndex) buildIndexes() {
	groups := make(map[string][]historyRow)
	for _, r := range h.rows {
		groups[historyKey(r.Patient, r.Activity, r.Form, r.Repeat)] = append(
			groups[historyKey(r.Patient, r.Activity, r.Form, r.Repeat)], r)
	}
	for key, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Time.Before(group[j].Time) })

		last := group[len(group)-1]
		h.entries[key] = FormEntry{
			EntryStatus: last.EntryStatus,
			VerStatus:   last.VerStatus,
			User:        last.User,
			Time:        last.Time,
		}

		// A verification event is a transition into the verified state.
		// Each un-verify resets the tracker, so only the latest completed
		// cycle's entry survives.
		var latest *VerificationEvent
		prevVerified := false
		for _, r := range group {
			curVerified := isVerifiedStatus(r.VerStatus)
			if curVerified && !prevVerified {
				latest = &VerificationEvent{User: r.User, Time: r.Time}
			}
			prevVerified = curVerified
		}
		if latest != nil {
			h.verifications[key] = *latest
		}
	}
}

// blankVerStatuses are the verification states of a form that was never
// submitted for review.
var blankVerStatuses = map[string]bool{"": true, "Blank": true, "nan": true, "None": true}

// matchToken implements the fuzzy name comparison used for forms and visits:
// exact match first, then bidirectional substring, all case-insensitive.
func matchToken(key, query string) bool {
	key = strings.ToLower(key)
	query = strings.ToLower(query)
	return key == query || strings.Contains(key, query) || strings.Contains(query, key)
}

// lookup finds the first indexed group matching patient, fuzzy form, optional
// fuzzy visit, and repeat ("0" matches any repeat).
func (h *HistoryIndex) lookup(patient, form, visit, repeat string) (string, FormEntry, bool) {
	patient = strings.TrimSpace(patient)
	form = strings.TrimSpace(form)
	if repeat = strings.TrimSpace(repeat); repeat == "" {
		repeat = "0"
	}
	prefix := patient + "|"
	for key, entry := range h.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		parts := strings.Split(key, "|")
		if len(parts) < 4 {
			continue
		}
		kVisit, kForm, kRepeat := parts[1], parts[2], parts[3]
		if !matchToken(kForm, form) {
			continue
		}
		if kRepeat != repeat && repeat != "0" {
			continue
		}
		if visit != "" && !matchToken(kVisit, visit) {
			continue
		}
		return key, entry, true
	}
	return "", FormEntry{}, false
}

// FormNotSent reports whether the form was created but never submitted to
// monitoring: latest entry status "Created" with a blank verification status.
func (h *HistoryIndex) FormNotSent(patient, form, visit, repeat string) bool {
	if len(h.entries) == 0 {
		return false
	}
	prefix := strings.TrimSpace(patient) + "|"
	formQ := strings.TrimSpace(form)
	if repeat = strings.TrimSpace(repeat); repeat == "" {
		repeat = "0"
	}
	for key, entry := range h.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		parts := strings.Split(key, "|")
		if len(parts) < 4 {
			continue
		}
		if !matchToken(parts[2], formQ) {
			continue
		}
		if parts[3] != repeat && repeat != "0" {
			continue
		}
		if visit != "" && !matchToken(parts[1], visit) {
			continue
		}
		if entry.EntryStatus == "Created" && blankVerStatuses[entry.VerStatus] {
			return true
		}
	}
	return false
}

// VerificationDetails returns who verified the form and when. The dedicated
// verification event is preferred; the latest row is only trusted when its
// own status looks verified, otherwise the data-entry user would be reported
// as the verifier.
func (h *HistoryIndex) VerificationDetails(patient, form, visit, repeat string) (VerificationEvent, bool) {
	key, entry, ok := h.lookup(patient, form, visit, repeat)
	if !ok {
		return VerificationEvent{}, false
	}
	if ev, ok := h.verifications[key]; ok {
		return ev, true
	}
	if isVerifiedStatus(entry.VerStatus) {
		return VerificationEvent{User: entry.User, Time: entry.Time}, true
	}
	return VerificationEvent{}, false
}

// Len returns the number of indexed form groups.
func (h *HistoryIndex) Len() int { return len(h.entries) }

// Entries returns a copy of the latest entry per form group, keyed by
// "patient|activity|form|repeat".
func (h *HistoryIndex) Entries() map[string]FormEntry {
	out := make(map[string]FormEntry, len(h.entries))
	for k, v := range h.entries {
		out[k] = v
	}
	return out
}

// strictVerifiedStatuses are the literal verification states of a form whose
// whole page currently shows as verified.
var strictVerifiedStatuses = map[string]bool{
	"Verified":     true,
	"SDV Verified": true,
	"DMR Verified": true,
}

// StrictlyVerified reports whether a latest-row verification status marks the
// whole form verified.
func StrictlyVerified(verStatus string) bool { return strictVerifiedStatuses[verStatus] }

// EntryNotSent reports whether a latest-row entry denotes a created but never
// submitted form.
func EntryNotSent(e FormEntry) bool {
	return e.EntryStatus == "Created" && blankVerStatuses[e.VerStatus]
}
