package sdv

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

func modularFixture() *edc.Table {
	header := []string{
		"Subject Screening #", "Visit Code", "Form Code", "Variable name",
		"Variable Value", "CRA_CONTROL_STATUS", "Hidden", "Table row #",
		"Repeatable form #", "Field Key",
	}
	rows := [][]string{
		{"101-001", "SBV", "PE", "SBV_PEDTC", "2024-03-01", "2", "0", "", "", ""},
		{"101-001", "SBV", "VS", "SBV_VSORRES_HR", "72", "0", "0", "", "", ""},
		{"101-001", "SBV", "VS", "SBV_VSORRES_TEMP", "", "0", "0", "", "", ""},
		{"101-001", "SBV", "PE", "SBV_PE_HIDDENF", "", "0", "1", "", "", ""},
		{"101-001", "SBV", "MH", "SBV_MH_MHTERM", "Hypertension", "3", "0", "1", "", "SBV/MH/MHTERM#1"},
		// Duplicate key: hidden first, visible second. Visible must win.
		{"101-001", "SBV", "LB", "SBV_LBORRES_ALB", "4.1", "2", "1", "", "", ""},
		{"101-001", "SBV", "LB", "SBV_LBORRES_ALB", "4.1", "0", "0", "", "", ""},
		// AE rows for repeat resolution.
		{"101-001", "LOGS", "AE", "LOGS_AETERM", "Dyspnea", "2", "0", "", "1.0", "LOGS/AE#1/AETERM"},
		{"101-001", "LOGS", "AE", "LOGS_AETERM", "Edema", "0", "0", "", "4.0", "LOGS/AE#4/AETERM"},
		{"101-001", "LOGS", "AE", "LOGS_AETERM_COMM", "Edema", "0", "0", "", "4.0", ""},
		// Additional lab row.
		{"101-001", "LOGS", "LB_PR_OTH", "LOGS_LBTEST_OTH", "Ammonia", "2", "0", "3.0", "", "LOGS/LB_PR_OTH/LBTEST_OTH#3"},
		{"101-002.0", "SBV", "PE", "SBV_PEDTC", "", "0", "0", "", "", ""},
	}
	return edc.NewTable("modular", header, rows)
}

func TestFieldIndexLookups(t *testing.T) {
	f := NewFieldIndex(modularFixture(), zerolog.Nop())

	cases := []struct {
		name    string
		patient string
		field   string
		row     int
		want    Status
	}{
		{"direct variable name", "101-001", "SBV_PEDTC", 0, StatusVerified},
		{"constructed key", "101-001", "SBV_PE_PEDTC", 0, StatusVerified},
		{"filled unverified", "101-001", "SBV_VSORRES_HR", 0, StatusPending},
		{"empty unverified", "101-001", "SBV_VSORRES_TEMP", 0, StatusNotSent},
		{"hidden", "101-001", "SBV_PE_HIDDENF", 0, StatusHidden},
		{"field key with row", "101-001", "SBV_MH_MHTERM", 1, StatusAwaiting},
		{"table field without row", "101-001", "SBV_MH_MHTERM", 0, StatusAwaiting},
		{"infix row marker", "101-001", "LOGS_AE_AETERM", 4, StatusPending},
		{"patient id float suffix", "101-002", "SBV_PEDTC", 0, StatusNotSent},
		{"unknown patient", "999-999", "SBV_PEDTC", 0, StatusNone},
		{"unknown field", "101-001", "SBV_NOPE", 0, StatusNone},
	}
	for _, c := range cases {
		if got := f.Status(c.patient, c.field, c.row); got != c.want {
			t.Errorf("%s: Status = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestDuplicateKeyVisibleWins(t *testing.T) {
	f := NewFieldIndex(modularFixture(), zerolog.Nop())
	st, _, ok := f.State("101-001", "SBV_LBORRES_ALB", 0)
	if !ok {
		t.Fatal("expected state")
	}
	if st.Hidden {
		t.Error("visible duplicate must replace hidden one")
	}
	if st.Code != 0 {
		t.Errorf("code = %d, want the visible row's 0", st.Code)
	}
}

func TestAERepeatNumber(t *testing.T) {
	f := NewFieldIndex(modularFixture(), zerolog.Nop())
	n, ok := f.AERepeatNumber("101-001", "Edema", 0)
	if !ok || n != "4" {
		t.Fatalf("AERepeatNumber = (%q, %v), want (4, true); COMM rows must be skipped", n, ok)
	}
	if _, ok := f.AERepeatNumber("101-001", "Nausea", 0); ok {
		t.Error("unknown term must not resolve")
	}
}

func TestLabRowNumber(t *testing.T) {
	f := NewFieldIndex(modularFixture(), zerolog.Nop())
	n, ok := f.LabRowNumber("101-001", "Ammonia", 0)
	if !ok || n != "3" {
		t.Fatalf("LabRowNumber = (%q, %v), want (3, true)", n, ok)
	}
}

func TestPatientAndTotalStats(t *testing.T) {
	f := NewFieldIndex(modularFixture(), zerolog.Nop())
	s := f.PatientStats("101-001")
	if s.Verified == 0 || s.Pending == 0 || s.Awaiting == 0 || s.Hidden == 0 {
		t.Fatalf("patient stats should cover all buckets, got %+v", s)
	}
	total := f.TotalStats()
	if total.Pending != s.Pending+1 {
		t.Errorf("total pending = %d, want patient pending %d plus one for 101-002", total.Pending, s.Pending)
	}
}

func TestIndexFormLevelNotSentOverride(t *testing.T) {
	history := [][]string{
		{"Scr #", "Site #", "Activity", "Form", "Repeatable form #", "Date", "Time", "Data Entry Status", "Verification Status", "User"},
		{"101-001", "101", "Baseline", "Physical Examination", "", "01-Mar-2024", "09:00:00 (UTC)", "Created", "Blank", "site.user"},
	}
	x := NewIndex(modularFixture(), history, zerolog.Nop())
	got := x.FieldStatus("101-001", "SBV_PEDTC", 0, "Physical Examination", "Baseline")
	if got != StatusNotSent {
		t.Fatalf("unsubmitted form must force NotSent, got %q", got)
	}
	// Without the form name the field's own verified state shows through.
	if got := x.FieldStatus("101-001", "SBV_PEDTC", 0, "", ""); got != StatusVerified {
		t.Fatalf("field-level status = %q, want verified", got)
	}
}
