// Package ae parses, deduplicates, filters, and summarizes adverse event
// records from the AE export sheet.
package ae

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
	"github.com/fontanka/EDC-check-sub001/internal/repeating"
)

// Record is one adverse event after column resolution and cleaning.
type Record struct {
	Patient        string
	Number         string
	SAE            string // normalized Yes/No, original text if neither
	Term           string
	Severity       string
	Interval       string
	OnsetDate      string
	ResolutionDate string // "Ongoing" when the ongoing box is ticked
	Ongoing        bool
	Outcome        string
	RelTrillium    string
	RelDelivery    string
	RelHandle      string
	RelProcedure   string
	Description    string
	SAEDescription string
	Hospitalized   string
	LifeThreat     string
	Death          string
	Disability     string
	OtherMedical   string
	ReportDate     string
}

// Filters narrows a record listing. Zero-value time fields disable the
// corresponding cutoff.
type Filters struct {
	SAEOnly           bool
	DeviceRelatedOnly bool
	ExcludePreProc    bool
	OnsetCutoff       time.Time
	ReportCutoff      time.Time
}

// Manager resolves the AE sheet's unstable column naming and serves filtered
// record listings and summary statistics. The main table supplies per-patient
// context (procedure dates, enrollment status, death form fields).
type Manager struct {
	main *edc.Table
	aes  *edc.Table
	log  zerolog.Logger

	procDates      map[string]time.Time
	screenFailures []string
	sfLoaded       bool
}

// NewManager wires the manager to the loaded tables. main may be nil; the
// filters that need it then degrade to no-ops.
func NewManager(main, aes *edc.Table, log zerolog.Logger) *Manager {
	return &Manager{main: main, aes: aes, log: log, procDates: make(map[string]time.Time)}
}

// Column aliases per logical field, ordered by preference. Different export
// profiles of the same study ship different header names.
var colAliases = map[string][]string{
	"number":     {"Template number", "AE #", "AE Number", "AESEQ", "LOGS_AE_AESEQ", "LOGS_AE_AE #"},
	"sae":        {"LOGS_AE_AESER", "Is the event SAE?", "AESER", "SAE"},
	"term":       {"LOGS_AE_AETERM", "adverse event / term", "AETERM", "Term"},
	"severity":   {"LOGS_AE_AESEV", "Severity", "AESEV"},
	"interval":   {"LOGS_AE_AEINT", "Interval", "AEINT"},
	"onset":      {"LOGS_AE_AESTDTC", "Date of event onset", "AESTDTC", "Start Date"},
	"resolution": {"LOGS_AE_AEENDTC", "Date resolved", "AEENDTC", "End Date"},
	"ongoing":    {"LOGS_AE_AEONGO", "Ongoing", "AEONGO"},
	"outcome":    {"LOGS_AE_AEOUT", "Outcome", "AEOUT"},
	"rel1":       {"LOGS_AE_AEREL1", "relationship / PKG Trillium", "AEREL1", "Rel Trillium"},
	"rel2":       {"LOGS_AE_AEREL2", "relationship / PKG Delivery System", "AEREL2", "Rel Delivery"},
	"rel3":       {"LOGS_AE_AEREL3", "relationship / PKG Handle", "AEREL3", "Rel Handle"},
	"rel4":       {"LOGS_AE_AEREL4", "relationship / index procedure", "AEREL4", "Rel Procedure"},
	"desc":       {"LOGS_AE_AETERM_COMM", "AE and sequelae / description", "AETERM_COMM"},
	"saedesc":    {"LOGS_AE_AETERM_COMM1", "SAE and sequelae / description", "AETERM_COMM1"},
	"hosp":       {"LOGS_AE_AESHOSP", "Hospitalization", "AESHOSP"},
	"life":       {"LOGS_AE_AESLIFE", "Life Threatening", "AESLIFE"},
	"death":      {"LOGS_AE_AESDTH", "Death", "AESDTH"},
	"disab":      {"LOGS_AE_AESDISAB", "Disability", "AESDISAB"},
	"other":      {"LOGS_AE_AESMIE", "Other", "AESMIE"},
	"report":     {"LOGS_AE_AEREPDAT", "AE Report Date", "AEREPDAT"},
}

const colPatient = "Screening #"

func (m *Manager) col(field string) (string, bool) {
	i, ok := m.aes.FirstCol(colAliases[field]...)
	if !ok {
		return "", false
	}
	return m.aes.Header[i], true
}

func (m *Manager) cell(row int, field string) string {
	name, ok := m.col(field)
	if !ok {
		return ""
	}
	return m.aes.Cell(row, name)
}

func normalizeBoolean(v string) string {
	switch strings.ToLower(v) {
	case "yes", "y", "1", "true":
		return "Yes"
	case "no", "n", "0", "false":
		return "No"
	}
	return v
}

// dedupedRows returns AE sheet row indexes after collapsing overflow
// continuation rows: the exporter splits long free text across extra rows
// that repeat the (patient, AE number) key with most fields blank.
func (m *Manager) dedupedRows() []int {
	numCol, hasNum := m.col("number")
	if !hasNum {
		out := make([]int, m.aes.NumRows())
		for i := range out {
			out[i] = i
		}
		return out
	}
	termIdx := -1
	if termCol, ok := m.col("term"); ok {
		termIdx, _ = m.aes.Col(termCol)
	}

	rows := make([]repeating.Row, 0, m.aes.NumRows())
	for i := 0; i < m.aes.NumRows(); i++ {
		rows = append(rows, repeating.Row{
			Key:     m.aes.Cell(i, colPatient) + "|" + edc.StripFloatSuffix(m.aes.Cell(i, numCol)),
			Cells:   m.aes.Rows[i],
			TermIdx: termIdx,
		})
	}
	kept := repeating.DedupeIndexes(rows)
	if dropped := len(rows) - len(kept); dropped > 0 {
		m.log.Debug().Int("kept", len(kept)).Int("dropped", dropped).Msg("collapsed AE overflow rows")
	}
	return kept
}

func (m *Manager) record(row int) Record {
	r := Record{
		Patient:        m.aes.Cell(row, colPatient),
		Number:         edc.StripFloatSuffix(m.cell(row, "number")),
		SAE:            normalizeBoolean(m.cell(row, "sae")),
		Term:           m.cell(row, "term"),
		Severity:       m.cell(row, "severity"),
		Interval:       m.cell(row, "interval"),
		OnsetDate:      edc.CleanDate(m.cell(row, "onset")),
		ResolutionDate: edc.CleanDate(m.cell(row, "resolution")),
		Outcome:        m.cell(row, "outcome"),
		RelTrillium:    m.cell(row, "rel1"),
		RelDelivery:    m.cell(row, "rel2"),
		RelHandle:      m.cell(row, "rel3"),
		RelProcedure:   m.cell(row, "rel4"),
		Description:    m.cell(row, "desc"),
		SAEDescription: m.cell(row, "saedesc"),
		Hospitalized:   m.cell(row, "hosp"),
		LifeThreat:     m.cell(row, "life"),
		Death:          m.cell(row, "death"),
		Disability:     m.cell(row, "disab"),
		OtherMedical:   m.cell(row, "other"),
		ReportDate:     edc.CleanDate(m.cell(row, "report")),
	}
	if edc.IsChecked(m.cell(row, "ongoing")) {
		r.Ongoing = true
		r.ResolutionDate = "Ongoing"
	}
	return r
}

var notRelatedValues = map[string]bool{"not related": true, "": true}

func isRelated(v string) bool {
	return !notRelatedValues[strings.ToLower(strings.TrimSpace(v))]
}

func (r Record) deviceRelated() bool {
	return isRelated(r.RelTrillium) || isRelated(r.RelDelivery) || isRelated(r.RelHandle) || isRelated(r.RelProcedure)
}

func (m *Manager) keep(r Record, f Filters) bool {
	if f.SAEOnly && r.SAE != "Yes" {
		return false
	}
	if f.DeviceRelatedOnly && !r.deviceRelated() {
		return false
	}
	if f.ExcludePreProc {
		if proc, ok := m.procedureDate(r.Patient); ok {
			if onset, ok := edc.ParseDate(r.OnsetDate); ok && onset.Before(proc) {
				return false
			}
		}
	}
	// Cutoffs exclude records whose date is unknown: an unparseable onset or
	// report date cannot be shown to fall after the cutoff.
	if !f.OnsetCutoff.IsZero() {
		onset, ok := edc.ParseDate(r.OnsetDate)
		if !ok || onset.Before(f.OnsetCutoff) {
			return false
		}
	}
	if !f.ReportCutoff.IsZero() {
		rep, ok := edc.ParseDate(r.ReportDate)
		if !ok || rep.Before(f.ReportCutoff) {
			return false
		}
	}
	return true
}

// PatientRecords returns the patient's deduplicated adverse events, filtered
// and sorted by AE number.
func (m *Manager) PatientRecords(patientID string, f Filters) []Record {
	if m.aes == nil {
		return nil
	}
	patientID = strings.TrimSpace(patientID)
	var out []Record
	for _, i := range m.dedupedRows() {
		if m.aes.Cell(i, colPatient) != patientID {
			continue
		}
		r := m.record(i)
		if m.keep(r, f) {
			out = append(out, r)
		}
	}
	sortByNumber(out)
	return out
}

// AllRecords returns filtered records for every patient in the sheet.
func (m *Manager) AllRecords(f Filters) []Record {
	if m.aes == nil {
		return nil
	}
	var out []Record
	for _, i := range m.dedupedRows() {
		r := m.record(i)
		if r.Patient == "" {
			continue
		}
		if m.keep(r, f) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Patient < out[j].Patient })
	// Number order within each patient.
	start := 0
	for i := 1; i <= len(out); i++ {
		if i == len(out) || out[i].Patient != out[start].Patient {
			sortByNumber(out[start:i])
			start = i
		}
	}
	return out
}

func sortByNumber(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, errA := strconv.ParseFloat(rs[i].Number, 64)
		b, errB := strconv.ParseFloat(rs[j].Number, 64)
		if errA != nil || errB != nil {
			return errA == nil && errB != nil
		}
		return a < b
	})
}

// ScreenFailures lists patients whose enrollment status reads as a screen
// failure.
func (m *Manager) ScreenFailures() []string {
	if m.sfLoaded {
		return m.screenFailures
	}
	m.sfLoaded = true
	if m.main == nil || !m.main.HasCol("Status") {
		return nil
	}
	for i := 0; i < m.main.NumRows(); i++ {
		s := strings.ToLower(m.main.Cell(i, "Status"))
		if strings.Contains(s, "screen") && strings.Contains(s, "fail") {
			m.screenFailures = append(m.screenFailures, m.main.Cell(i, colPatient))
		}
	}
	return m.screenFailures
}

// procedureDate resolves the patient's treatment date from the main table,
// trying the implant procedure date first and the treatment visit date as a
// fallback. Results are cached.
func (m *Manager) procedureDate(patientID string) (time.Time, bool) {
	patientID = strings.TrimSpace(patientID)
	if d, ok := m.procDates[patientID]; ok {
		return d, !d.IsZero()
	}
	m.procDates[patientID] = time.Time{}
	if m.main == nil {
		return time.Time{}, false
	}
	row := -1
	for i := 0; i < m.main.NumRows(); i++ {
		if m.main.Cell(i, colPatient) == patientID {
			row = i
			break
		}
	}
	if row < 0 {
		return time.Time{}, false
	}
	for _, part := range []string{"TV_PR_PRSTDTC", "TV_PR_SVDTC"} {
		col, ok := m.findColContaining(part)
		if !ok {
			continue
		}
		if d, ok := edc.ParseDate(edc.CleanDate(m.main.Cell(row, col))); ok {
			m.procDates[patientID] = d
			return d, true
		}
	}
	return time.Time{}, false
}

func (m *Manager) findColContaining(part string) (string, bool) {
	for _, h := range m.main.Header {
		if strings.Contains(h, part) {
			return h, true
		}
	}
	return "", false
}

// TermCount is one ranked adverse event term.
type TermCount struct {
	Term  string
	Count int
}

// RelCounts buckets one relationship column by assessed strength.
type RelCounts struct {
	Related         int
	Probably        int
	Possibly        int
	NotRelated      int
	Unknown         int
	RelatedProbably int // Related plus Probably, the reportable total
}

// DeathDetail is the death form summary for one deceased patient with
// adverse events.
type DeathDetail struct {
	Patient        string
	DeathDate      string
	Classification string
	Cause          string
}

// Summary holds the dataset-level adverse event statistics.
type Summary struct {
	TotalAEs         int
	TotalSAEs        int
	FatalCases       int
	PatientsWithAEs  int
	OngoingAEs       int
	OutcomeDist      map[string]int
	TopTerms         []TermCount
	SAECriteria      map[string]int
	BySite           map[string]int
	ByPatient        map[string]int
	PerPatient       []string
	Relatedness      map[string]RelCounts
	DeathDetails     []DeathDetail
}

// SummaryOptions scopes a summary run.
type SummaryOptions struct {
	ExcludedPatients      map[string]bool
	ExcludePreProc        bool
	ExcludeScreenFailures bool
}

const topTermLimit = 10

// Summarize computes the adverse event statistics over the deduplicated
// sheet.
func (m *Manager) Summarize(opt SummaryOptions) Summary {
	s := Summary{
		OutcomeDist: make(map[string]int),
		SAECriteria: map[string]int{"Hospitalization": 0, "Life-threatening": 0, "Death": 0, "Disability": 0, "Other Med/Surg": 0},
		BySite:      make(map[string]int),
		ByPatient:   make(map[string]int),
		Relatedness: make(map[string]RelCounts),
	}
	if m.aes == nil {
		return s
	}

	sf := make(map[string]bool)
	if opt.ExcludeScreenFailures {
		for _, p := range m.ScreenFailures() {
			sf[p] = true
		}
	}

	var recs []Record
	for _, i := range m.dedupedRows() {
		r := m.record(i)
		if r.Patient == "" || opt.ExcludedPatients[r.Patient] || sf[r.Patient] {
			continue
		}
		if opt.ExcludePreProc {
			if proc, ok := m.procedureDate(r.Patient); ok {
				if onset, ok := edc.ParseDate(r.OnsetDate); ok && onset.Before(proc) {
					continue
				}
			}
		}
		recs = append(recs, r)
	}
	if len(recs) == 0 {
		return s
	}

	s.TotalAEs = len(recs)

	type patientTally struct {
		aes, saes, ongoing, device, proc, possProc int
	}
	perPatient := make(map[string]*patientTally)
	termCounts := make(map[string]int)
	termCase := make(map[string]string)

	for i := range recs {
		r := &recs[i]
		pt := perPatient[r.Patient]
		if pt == nil {
			pt = &patientTally{}
			perPatient[r.Patient] = pt
		}
		pt.aes++
		s.BySite[edc.Site(r.Patient)]++
		s.ByPatient[r.Patient]++

		if r.SAE == "Yes" {
			s.TotalSAEs++
			pt.saes++
		}
		if r.Outcome != "" {
			s.OutcomeDist[r.Outcome]++
			if strings.EqualFold(r.Outcome, "fatal") {
				s.FatalCases++
			}
		}
		if m.isOngoing(*r) {
			s.OngoingAEs++
			pt.ongoing++
		}
		if term := strings.TrimSpace(r.Term); term != "" {
			lo := strings.ToLower(term)
			termCounts[lo]++
			if _, ok := termCase[lo]; !ok {
				termCase[lo] = term
			}
		}
		if edc.IsChecked(r.Hospitalized) {
			s.SAECriteria["Hospitalization"]++
		}
		if edc.IsChecked(r.LifeThreat) {
			s.SAECriteria["Life-threatening"]++
		}
		if edc.IsChecked(r.Death) {
			s.SAECriteria["Death"]++
		}
		if edc.IsChecked(r.Disability) {
			s.SAECriteria["Disability"]++
		}
		if edc.IsChecked(r.OtherMedical) {
			s.SAECriteria["Other Med/Surg"]++
		}

		if isRelated(r.RelTrillium) || isRelated(r.RelDelivery) || isRelated(r.RelHandle) {
			pt.device++
		}
		procVal := strings.ToLower(strings.TrimSpace(r.RelProcedure))
		switch {
		case strings.Contains(procVal, "possibly"):
			pt.possProc++
		case procVal != "" && procVal != "not related":
			pt.proc++
		}
	}
	s.PatientsWithAEs = len(perPatient)

	// Top terms, case-insensitive with the first observed casing preserved.
	terms := make([]TermCount, 0, len(termCounts))
	for lo, n := range termCounts {
		terms = append(terms, TermCount{Term: termCase[lo], Count: n})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > topTermLimit {
		terms = terms[:topTermLimit]
	}
	s.TopTerms = terms

	for pid, pt := range perPatient {
		s.PerPatient = append(s.PerPatient, fmt.Sprintf(
			"%s: %d AEs; including %d SAEs; %d device-related; %d procedure-related; %d possibly procedure-related; %d ongoing",
			pid, pt.aes, pt.saes, pt.device, pt.proc, pt.possProc, pt.ongoing))
	}
	sort.Strings(s.PerPatient)

	s.Relatedness = relatednessTable(recs)
	aePatients := make([]string, 0, len(perPatient))
	for pid := range perPatient {
		aePatients = append(aePatients, pid)
	}
	sort.Strings(aePatients)
	s.DeathDetails = m.deathDetails(aePatients)
	return s
}

// isOngoing is true when the ongoing box is ticked, or implied when a valid
// event has no end date and an outcome that is not terminal.
func (m *Manager) isOngoing(r Record) bool {
	if r.Ongoing {
		return true
	}
	if r.ResolutionDate != "" || strings.TrimSpace(r.Term) == "" {
		return false
	}
	o := strings.ToLower(r.Outcome)
	if strings.Contains(o, "fatal") || strings.Contains(o, "recovered") || strings.Contains(o, "resolved") {
		return false
	}
	return true
}

func relBucket(c *RelCounts, v string) {
	lo := strings.ToLower(strings.TrimSpace(v))
	switch {
	case lo == "related":
		c.Related++
		c.RelatedProbably++
	case strings.Contains(lo, "probably"):
		c.Probably++
		c.RelatedProbably++
	case strings.Contains(lo, "possibly"):
		c.Possibly++
	case strings.Contains(lo, "not related"):
		c.NotRelated++
	default:
		c.Unknown++
	}
}

func relatednessTable(recs []Record) map[string]RelCounts {
	var device, delivery, handle, proc RelCounts
	for _, r := range recs {
		relBucket(&device, r.RelTrillium)
		relBucket(&delivery, r.RelDelivery)
		relBucket(&handle, r.RelHandle)
		relBucket(&proc, r.RelProcedure)
	}
	return map[string]RelCounts{
		"Device":          device,
		"Delivery System": delivery,
		"Handle":          handle,
		"Procedure":       proc,
	}
}

// deathDetails pulls the death form fields from the main table for patients
// with adverse events. Patients without a recorded death date are skipped.
func (m *Manager) deathDetails(patients []string) []DeathDetail {
	if m.main == nil {
		return nil
	}
	dateCol, hasDate := m.findColContaining("DTH_DDDTC")
	if !hasDate {
		return nil
	}
	catCol, _ := m.findColContaining("DTH_DDRESCAT")
	reasonCol, _ := m.findColContaining("DTH_DDORRES")

	var out []DeathDetail
	for _, pid := range patients {
		for i := 0; i < m.main.NumRows(); i++ {
			if m.main.Cell(i, colPatient) != pid {
				continue
			}
			date := m.main.Cell(i, dateCol)
			if date == "" {
				break
			}
			d := DeathDetail{Patient: pid, DeathDate: edc.CleanDate(date)}
			if catCol != "" {
				d.Classification = m.main.Cell(i, catCol)
			}
			if reasonCol != "" {
				d.Cause = m.main.Cell(i, reasonCol)
			}
			out = append(out, d)
			break
		}
	}
	return out
}
