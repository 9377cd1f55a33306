package sdv

import (
	"sort"
	"time"
)

// ActivityEntry is one line of the monitoring-activity report: how many
// distinct form pages one user verified for a patient visit on a given day.
type ActivityEntry struct {
	User          string
	Date          string // YYYY-MM-DD
	Site          string
	Patient       string
	Visit         string
	PagesVerified int
}

// ActivityFilter restricts the activity report. Zero times disable the bound;
// an empty or "All" user matches everyone.
type ActivityFilter struct {
	Start time.Time
	End   time.Time
	User  string
}

// exactVerified matches the literal verification statuses. Unlike the
// transition detector this intentionally excludes partial strings: only
// actual verification rows count as monitor activity.
func exactVerified(s string) bool {
	for _, k := range verifiedKeywords {
		if s == k {
			return true
		}
	}
	return false
}

// ActivityReport aggregates verification rows into per-(user, day, site,
// patient, visit) page counts, sorted by user, then day, then patient. The
// End bound is inclusive of the whole day.
func (h *HistoryIndex) ActivityReport(f ActivityFilter) []ActivityEntry {
	type groupKey struct {
		user, day, site, patient, visit string
	}
	pages := make(map[groupKey]map[string]bool)

	var endExclusive time.Time
	if !f.End.IsZero() {
		endExclusive = f.End.AddDate(0, 0, 1)
	}
	for _, r := range h.rows {
		if !exactVerified(r.VerStatus) {
			continue
		}
		if !f.Start.IsZero() && r.Time.Before(f.Start) {
			continue
		}
		if !endExclusive.IsZero() && !r.Time.Before(endExclusive) {
			continue
		}
		if f.User != "" && f.User != "All" && r.User != f.User {
			continue
		}
		k := groupKey{r.User, r.Time.Format("2006-01-02"), r.Site, r.Patient, r.Activity}
		if pages[k] == nil {
			pages[k] = make(map[string]bool)
		}
		pages[k][r.Form+"|"+r.Repeat] = true
	}

	out := make([]ActivityEntry, 0, len(pages))
	for k, forms := range pages {
		out = append(out, ActivityEntry{
			User: k.user, Date: k.day, Site: k.site,
			Patient: k.patient, Visit: k.visit, PagesVerified: len(forms),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.User != b.User {
			return a.User < b.User
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Patient != b.Patient {
			return a.Patient < b.Patient
		}
		return a.Visit < b.Visit
	})
	return out
}
