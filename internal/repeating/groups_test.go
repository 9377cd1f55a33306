package repeating_test

import (
	"reflect"
	"testing"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
	"github.com/fontanka/EDC-check-sub001/internal/repeating"
)

func cmSpec() repeating.GroupSpec {
	return repeating.GroupSpec{
		BaseFragment: "CMTRT",
		BaseName:     "Medication",
		Fields: []repeating.Field{
			{Fragment: "CMDOSE", Name: "Dose"},
			{Fragment: "CMDOSU", Name: "Dose Unit"},
			{Fragment: "CMSTDAT", Name: "Start Date", Date: true},
			{Fragment: "CMENDAT", Name: "End Date", Date: true},
			{Fragment: "CMONGO", Name: "Ongoing"},
		},
	}
}

func TestParsePositionalAlignment(t *testing.T) {
	tb := edc.NewTable("main",
		[]string{"Screening #", "LOGS_CM_CMTRT", "LOGS_CM_CMDOSE", "LOGS_CM_CMDOSU", "LOGS_CM_CMSTDAT", "LOGS_CM_CMENDAT", "LOGS_CM_CMONGO"},
		[][]string{{
			"101-001",
			"Furosemide | nan | Spironolactone",
			"40 | 20",
			"mg | mg | mg",
			"2024-01-10T00:00:00 | 2024-02-01 | 2024-03-05, time unknown",
			" |  | ",
			"Yes |  | No",
		}})
	recs := cmSpec().Parse(tb, 0)
	if len(recs) != 2 {
		t.Fatalf("want 2 records (nan segment skipped), got %d", len(recs))
	}
	if recs[0].Values["Medication"] != "Furosemide" || recs[0].Values["Dose"] != "40" {
		t.Errorf("first record misaligned: %v", recs[0].Values)
	}
	if recs[0].Values["Start Date"] != "2024-01-10" {
		t.Errorf("date segment not cleaned: %q", recs[0].Values["Start Date"])
	}
	// The third base segment aligns with sibling index 2; the dose list is
	// shorter so the dose is empty.
	if recs[1].Values["Medication"] != "Spironolactone" {
		t.Errorf("second record = %v", recs[1].Values)
	}
	if recs[1].Values["Dose"] != "" {
		t.Errorf("short sibling list should pad empty, got %q", recs[1].Values["Dose"])
	}
	if recs[1].Values["Start Date"] != "2024-03-05" {
		t.Errorf("time unknown suffix should be stripped, got %q", recs[1].Values["Start Date"])
	}
}

func TestApplyOngoing(t *testing.T) {
	rec := repeating.Record{Values: map[string]string{"Ongoing": "Yes", "End Date": ""}}
	repeating.ApplyOngoing(rec, "Ongoing", "End Date")
	if rec.Values["End Date"] != "Ongoing" {
		t.Errorf("End Date = %q, want Ongoing", rec.Values["End Date"])
	}
	rec2 := repeating.Record{Values: map[string]string{"Ongoing": "No", "End Date": "2024-05-01"}}
	repeating.ApplyOngoing(rec2, "Ongoing", "End Date")
	if rec2.Values["End Date"] != "2024-05-01" {
		t.Errorf("unticked ongoing must not overwrite end date")
	}
}

func TestResolveOther(t *testing.T) {
	rec := repeating.Record{Values: map[string]string{"Dose Unit": "Other", "Dose Unit (Other)": "IU"}}
	repeating.ResolveOther(rec, "Dose Unit", "Dose Unit (Other)")
	if rec.Values["Dose Unit"] != "IU" {
		t.Errorf("Dose Unit = %q, want IU", rec.Values["Dose Unit"])
	}
}

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		freq, other string
		wantMult    float64
		hasMult     bool
		wantNote    string
	}{
		{"QD", "", 1, true, ""},
		{"bid", "", 2, true, ""},
		{"TID", "", 3, true, ""},
		{"qid", "", 4, true, ""},
		{"QOD", "", 0.5, true, "(every 48h)"},
		{"as needed", "", 0, false, "PRN"},
		{"once", "", 1, true, "(single dose)"},
		{"Other", "q8h", 3, true, "(q8h->3x/d)"},
		{"Other", "continuous infusion", 0, false, "(continuous)"},
		{"Other", "every other day", 0.5, true, "(every 48h)"},
		{"", "", 1, true, ""},
		{"weekly-ish nonsense", "", 1, true, ""},
	}
	for _, c := range cases {
		f := repeating.ParseFrequency(c.freq, c.other)
		if c.hasMult {
			if f.Multiplier == nil || *f.Multiplier != c.wantMult {
				t.Errorf("ParseFrequency(%q, %q) multiplier = %v, want %v", c.freq, c.other, f.Multiplier, c.wantMult)
			}
		} else if f.Multiplier != nil {
			t.Errorf("ParseFrequency(%q, %q) should have no multiplier", c.freq, c.other)
		}
		if f.Note != c.wantNote {
			t.Errorf("ParseFrequency(%q, %q) note = %q, want %q", c.freq, c.other, f.Note, c.wantNote)
		}
	}
}

func TestParseFrequencyMgSumOverride(t *testing.T) {
	f := repeating.ParseFrequency("Other", "40 mg morning, 20 mg evening")
	if f.OverrideDose == nil || *f.OverrideDose != 60 {
		t.Fatalf("override dose = %v, want 60", f.OverrideDose)
	}
	if got := repeating.DailyDose("40", "milligram", f); got != "60 mg/day" {
		t.Errorf("DailyDose = %q, want 60 mg/day", got)
	}
}

func TestDailyDose(t *testing.T) {
	cases := []struct {
		dose, unit, freq, other, want string
	}{
		{"40", "mg", "bid", "", "80 mg/day"},
		{"10", "milligram", "qd", "", "10 mg/day"},
		{"10", "", "qod", "", "5/day"},
		{"10", "mg", "as needed", "", "10 PRN"},
		{"not-a-number", "mg", "qd", "", ""},
		{"", "mg", "qd", "", ""},
	}
	for _, c := range cases {
		f := repeating.ParseFrequency(c.freq, c.other)
		if got := repeating.DailyDose(c.dose, c.unit, f); got != c.want {
			t.Errorf("DailyDose(%q, %q, %q) = %q, want %q", c.dose, c.unit, c.freq, got, c.want)
		}
	}
}

func TestDedupe(t *testing.T) {
	rows := []repeating.Row{
		{Key: "101-001|1", Cells: []string{"", "", ""}, TermIdx: 0},
		{Key: "101-001|1", Cells: []string{"Dyspnea", "Mild", "2024-01-01"}, TermIdx: 0},
		{Key: "101-001|2", Cells: []string{"Edema", "", ""}, TermIdx: 0},
		{Key: "101-002|1", Cells: []string{"", "Severe", ""}, TermIdx: 0},
	}
	out := repeating.Dedupe(rows)
	if len(out) != 3 {
		t.Fatalf("want 3 survivors, got %d", len(out))
	}
	if out[0].Cells[0] != "Dyspnea" {
		t.Errorf("row with term should beat empty overflow row, got %v", out[0].Cells)
	}
	// Survivors keep input order.
	if out[1].Cells[0] != "Edema" || out[2].Cells[1] != "Severe" {
		t.Errorf("survivor order wrong: %v", out)
	}
	// Idempotent.
	again := repeating.Dedupe(out)
	if !reflect.DeepEqual(out, again) {
		t.Error("Dedupe must be idempotent on its own output")
	}
}

func TestDedupeDenserWinsOnTie(t *testing.T) {
	rows := []repeating.Row{
		{Key: "k", Cells: []string{"Term", "", ""}, TermIdx: 0},
		{Key: "k", Cells: []string{"Term", "Mild", "2024-01-01"}, TermIdx: 0},
	}
	out := repeating.Dedupe(rows)
	if len(out) != 1 || out[0].Cells[1] != "Mild" {
		t.Fatalf("denser row should survive, got %v", out)
	}
}
