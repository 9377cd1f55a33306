package ae

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

func aeFixture() *edc.Table {
	header := []string{
		"Screening #", "Template number", "LOGS_AE_AESER", "LOGS_AE_AETERM",
		"LOGS_AE_AESTDTC", "LOGS_AE_AEENDTC", "LOGS_AE_AEONGO", "LOGS_AE_AEOUT",
		"LOGS_AE_AEREL1", "LOGS_AE_AEREL2", "LOGS_AE_AEREL3", "LOGS_AE_AEREL4",
		"LOGS_AE_AESHOSP", "LOGS_AE_AESDTH", "LOGS_AE_AEREPDAT",
	}
	rows := [][]string{
		{"101-001", "1", "1", "Dyspnea", "2024-03-10", "2024-03-20", "", "Recovered", "Not Related", "Not Related", "", "Related", "1", "", "2024-03-11"},
		// Overflow continuation of the row above: same key, no term.
		{"101-001", "1", "", "", "", "", "", "", "", "", "", "", "", "", ""},
		{"101-001", "2", "0", "headache", "2024-02-01", "", "", "", "Not Related", "Not Related", "", "Not Related", "", "", "2024-02-02"},
		{"101-002", "1", "Yes", "Headache", "2024-04-01", "", "1", "Not recovered", "Possibly Related", "Not Related", "", "Probably Related", "", "1", "2024-04-02"},
		{"103-001", "1", "No", "Nausea", "2024-01-05", "2024-01-10", "", "Recovered", "", "", "", "", "", "", "2024-01-06"},
	}
	return edc.NewTable("ae", header, rows)
}

func mainFixture() *edc.Table {
	header := []string{"Screening #", "Status", "TV_PR_PRSTDTC", "LOGS_DTH_DDDTC", "LOGS_DTH_DDRESCAT", "LOGS_DTH_DDORRES"}
	rows := [][]string{
		{"101-001", "Enrolled", "2024-03-01", "", "", ""},
		{"101-002", "Enrolled", "2024-03-05", "2024-05-01", "Cardiovascular", "Heart failure"},
		{"103-001", "Screen Failure", "", "", "", ""},
	}
	return edc.NewTable("main", header, rows)
}

func newTestManager() *Manager {
	return NewManager(mainFixture(), aeFixture(), zerolog.Nop())
}

func TestPatientRecordsDedupAndCleaning(t *testing.T) {
	m := newTestManager()
	recs := m.PatientRecords("101-001", Filters{})
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 after overflow dedup", len(recs))
	}
	if recs[0].Number != "1" || recs[0].Term != "Dyspnea" {
		t.Errorf("first record = %+v, want the populated row for AE 1", recs[0])
	}
	if recs[0].SAE != "Yes" || recs[1].SAE != "No" {
		t.Errorf("SAE normalization: got %q and %q", recs[0].SAE, recs[1].SAE)
	}
}

func TestOngoingOverridesResolutionDate(t *testing.T) {
	m := newTestManager()
	recs := m.PatientRecords("101-002", Filters{})
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if !recs[0].Ongoing || recs[0].ResolutionDate != "Ongoing" {
		t.Errorf("ticked ongoing must replace the resolution date, got %+v", recs[0])
	}
}

func TestRecordFilters(t *testing.T) {
	m := newTestManager()

	sae := m.PatientRecords("101-001", Filters{SAEOnly: true})
	if len(sae) != 1 || sae[0].Number != "1" {
		t.Errorf("SAE only: got %v", sae)
	}

	dev := m.PatientRecords("101-001", Filters{DeviceRelatedOnly: true})
	if len(dev) != 1 || dev[0].Number != "1" {
		t.Errorf("device related: got %v", dev)
	}

	// AE 2 onset 01-Feb precedes the 01-Mar procedure.
	post := m.PatientRecords("101-001", Filters{ExcludePreProc: true})
	if len(post) != 1 || post[0].Number != "1" {
		t.Errorf("pre-proc exclusion: got %v", post)
	}

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	onset := m.PatientRecords("101-001", Filters{OnsetCutoff: cutoff})
	if len(onset) != 1 || onset[0].Number != "1" {
		t.Errorf("onset cutoff: got %v", onset)
	}
	report := m.PatientRecords("101-001", Filters{ReportCutoff: cutoff})
	if len(report) != 1 || report[0].Number != "1" {
		t.Errorf("report cutoff: got %v", report)
	}
}

func TestAllRecordsSorted(t *testing.T) {
	m := newTestManager()
	all := m.AllRecords(Filters{})
	if len(all) != 4 {
		t.Fatalf("got %d records, want 4", len(all))
	}
	if all[0].Patient != "101-001" || all[len(all)-1].Patient != "103-001" {
		t.Errorf("records not ordered by patient: %v", all)
	}
}

func TestScreenFailures(t *testing.T) {
	m := newTestManager()
	sf := m.ScreenFailures()
	if len(sf) != 1 || sf[0] != "103-001" {
		t.Errorf("screen failures = %v, want [103-001]", sf)
	}
}

func TestSummarize(t *testing.T) {
	m := newTestManager()
	s := m.Summarize(SummaryOptions{})

	if s.TotalAEs != 4 || s.TotalSAEs != 2 || s.PatientsWithAEs != 3 {
		t.Errorf("totals = %d AEs, %d SAEs, %d patients", s.TotalAEs, s.TotalSAEs, s.PatientsWithAEs)
	}
	if s.FatalCases != 0 {
		t.Errorf("fatal cases = %d", s.FatalCases)
	}
	// One ticked ongoing plus one implied (no end date, open outcome).
	if s.OngoingAEs != 2 {
		t.Errorf("ongoing = %d, want 2", s.OngoingAEs)
	}
	if s.SAECriteria["Hospitalization"] != 1 || s.SAECriteria["Death"] != 1 {
		t.Errorf("criteria = %v", s.SAECriteria)
	}
	if s.BySite["101"] != 3 || s.BySite["103"] != 1 {
		t.Errorf("by site = %v", s.BySite)
	}

	if len(s.TopTerms) != 3 {
		t.Fatalf("top terms = %v", s.TopTerms)
	}
	if s.TopTerms[0].Term != "headache" || s.TopTerms[0].Count != 2 {
		t.Errorf("case-insensitive term grouping: got %+v", s.TopTerms[0])
	}

	proc := s.Relatedness["Procedure"]
	if proc.Related != 1 || proc.Probably != 1 || proc.RelatedProbably != 2 || proc.NotRelated != 1 || proc.Unknown != 1 {
		t.Errorf("procedure relatedness = %+v", proc)
	}
	dev := s.Relatedness["Device"]
	if dev.Possibly != 1 || dev.NotRelated != 2 || dev.Unknown != 1 {
		t.Errorf("device relatedness = %+v", dev)
	}

	if len(s.DeathDetails) != 1 || s.DeathDetails[0].Patient != "101-002" {
		t.Fatalf("death details = %v", s.DeathDetails)
	}
	if s.DeathDetails[0].Classification != "Cardiovascular" || s.DeathDetails[0].Cause != "Heart failure" {
		t.Errorf("death detail = %+v", s.DeathDetails[0])
	}

	if len(s.PerPatient) != 3 {
		t.Fatalf("per patient = %v", s.PerPatient)
	}
	want := "101-001: 2 AEs; including 1 SAEs; 0 device-related; 1 procedure-related; 0 possibly procedure-related; 1 ongoing"
	if s.PerPatient[0] != want {
		t.Errorf("per patient line = %q, want %q", s.PerPatient[0], want)
	}
}

func TestSummarizeExclusions(t *testing.T) {
	m := newTestManager()

	noSF := m.Summarize(SummaryOptions{ExcludeScreenFailures: true})
	if noSF.TotalAEs != 3 || noSF.PatientsWithAEs != 2 {
		t.Errorf("screen failures excluded: %d AEs, %d patients", noSF.TotalAEs, noSF.PatientsWithAEs)
	}

	noPre := m.Summarize(SummaryOptions{ExcludePreProc: true})
	if noPre.TotalAEs != 3 {
		t.Errorf("pre-proc excluded: %d AEs, want 3", noPre.TotalAEs)
	}

	excl := m.Summarize(SummaryOptions{ExcludedPatients: map[string]bool{"101-001": true}})
	if excl.TotalAEs != 2 {
		t.Errorf("patient exclusion: %d AEs, want 2", excl.TotalAEs)
	}
}
