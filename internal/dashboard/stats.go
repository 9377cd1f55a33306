package dashboard

import (
	"sort"
	"strings"
)

// Aggregation levels.
const (
	LevelStudy   = "study"
	LevelSite    = "site"
	LevelPatient = "patient"
	LevelForm    = "form"
)

// Metrics in display order.
var Metrics = []string{MetricNotSent, MetricVerified, MetricPending, MetricGap}

// Stats holds metric counts rolled up per aggregation level. Form counts are
// keyed "patient|form" since the same form name recurs across patients.
type Stats struct {
	Study   map[string]int
	Site    map[string]map[string]int
	Patient map[string]map[string]int
	Form    map[string]map[string]int
}

// FormStatsKey builds the composite key used by Stats.Form.
func FormStatsKey(patient, form string) string { return patient + "|" + form }

func bump(m map[string]map[string]int, key, metric string) {
	inner, ok := m[key]
	if !ok {
		inner = make(map[string]int, len(Metrics))
		m[key] = inner
	}
	inner[metric]++
}

// Aggregate rolls classified details up to study, site, patient, and form
// counts.
func Aggregate(details []Detail) Stats {
	s := Stats{
		Study:   make(map[string]int, len(Metrics)),
		Site:    make(map[string]map[string]int),
		Patient: make(map[string]map[string]int),
		Form:    make(map[string]map[string]int),
	}
	for _, d := range details {
		s.Study[d.Metric]++
		bump(s.Site, d.Site, d.Metric)
		bump(s.Patient, d.Patient, d.Metric)
		bump(s.Form, FormStatsKey(d.Patient, d.Form), d.Metric)
	}
	return s
}

func matchesLevel(d Detail, level, id string) bool {
	switch level {
	case LevelStudy, "":
		return true
	case LevelSite:
		return d.Site == id
	case LevelPatient:
		return d.Patient == id
	case LevelForm:
		return FormStatsKey(d.Patient, d.Form) == id
	}
	return false
}

// Drilldown returns the detail rows behind one cell of the dashboard:
// the given level/id scope filtered to one metric.
//
// Not-sent rows collapse to a single line per (patient, visit, form): every
// field of an unsubmitted form carries the metric, and listing them all
// drowns the review list. Verified rows are decorated with who verified the
// form and when.
func (c *Classifier) Drilldown(details []Detail, level, id, metric string) []Detail {
	var out []Detail
	seenNS := make(map[string]bool)
	for _, d := range details {
		if d.Metric != metric || !matchesLevel(d, level, id) {
			continue
		}
		if metric == MetricNotSent {
			key := strings.ToLower(d.Patient + "|" + d.Visit + "|" + d.Form)
			if seenNS[key] {
				continue
			}
			seenNS[key] = true
			d.Field = ""
			d.FieldID = ""
			d.Value = ""
		}
		if metric == MetricVerified && c.history != nil {
			repeat := ""
			if d.TableRow != "" && d.TableRow != "0" {
				repeat = d.TableRow
			}
			if ev, ok := c.history.VerificationDetails(d.Patient, d.Form, d.Visit, repeat); ok {
				d.VerifiedBy = ev.User
				d.Date = ev.Time.Format("02-Jan-2006")
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Patient != out[j].Patient {
			return out[i].Patient < out[j].Patient
		}
		if out[i].Visit != out[j].Visit {
			return out[i].Visit < out[j].Visit
		}
		return out[i].Form < out[j].Form
	})
	return out
}

// Count is one top-N ranking entry.
type Count struct {
	Key   string
	Count int
}

// TopCounts ranks level keys by their count of one metric and returns the
// first n, ties broken by key for stable output.
func TopCounts(details []Detail, level, metric string, n int) []Count {
	counts := make(map[string]int)
	for _, d := range details {
		if d.Metric != metric {
			continue
		}
		switch level {
		case LevelSite:
			counts[d.Site]++
		case LevelPatient:
			counts[d.Patient]++
		case LevelForm:
			counts[FormStatsKey(d.Patient, d.Form)]++
		default:
			counts[d.Patient]++
		}
	}
	out := make([]Count, 0, len(counts))
	for k, v := range counts {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
