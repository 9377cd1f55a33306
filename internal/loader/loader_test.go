package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func writeSheet(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func snapshotFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, FilePrefix+"_10-06-2025_08-30_00")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSheet(t, dir, "Main.csv",
		"Screening #,Site #,Status,TV_PR_PRSTDTC,TV_PR_SVDTC,FU1M_SV_SVSTDTC,LOGS_DTH_DDDTC,SBV_ELIG_IEORRES_CONF5,LOGS_AE_AETERM,LOGS_AE_AESTDTC,LOGS_AE_AEONGO,LOGS_AE_AEOUT,LOGS_AE_AESEV,LOGS_AE_AESER\n"+
			"Screening Number,Site Number,Subject Status,Procedure Date,Treatment Visit Date,1M Visit Date,Death Date,Eligibility,AE Term,AE Onset,Ongoing,Outcome,Severity,Serious\n"+
			"101-001,101,Enrolled,2024-03-01,2024-03-01,2024-02-15,,Confirmed,,,,,,\n")
	writeSheet(t, dir, "AE_LOGS.csv",
		"Screening #,LOGS_AE_AETERM,LOGS_AE_AESTDTC,LOGS_AE_AEOUT,LOGS_AE_AEINT\n"+
			"101-001,Cardiac arrest,2024-04-01,Fatal,\n"+
			"101-001,Rash,2024-02-20,Recovered,\n"+
			"101-001,Fever,2024-02-10,Recovered,Pre-procedure\n")
	writeSheet(t, dir, "LB_ACT_1.csv",
		"Screening #,TEST,RESULT\n101-001,ACT,180\n")
	writeSheet(t, dir, "LB_ACT_2.csv",
		"TEST,Screening #,RESULT\nACT,101-002,210\n")
	return dir
}

func TestParseCutoff(t *testing.T) {
	cases := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{FilePrefix + "_10-06-2025_08-30_00", time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC), true},
		{FilePrefix + "_01-05-2025_10-00-00_extra", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{FilePrefix + "_nodate", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseCutoff(c.name)
		if ok != c.ok || (ok && !got.Equal(c.want)) {
			t.Errorf("ParseCutoff(%q) = (%v, %v), want (%v, %v)", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestDetectLatest(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		FilePrefix + "_01-05-2025_10-00-00",
		FilePrefix + "_10-06-2025_08-30_00",
		"unrelated_dir",
	} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	path, cutoff, err := DetectLatest(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != FilePrefix+"_10-06-2025_08-30_00" {
		t.Errorf("latest = %s", path)
	}
	if !cutoff.Equal(time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("cutoff = %v", cutoff)
	}

	if _, _, err := DetectLatest(t.TempDir()); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("empty dir: err = %v, want ErrNoSnapshot", err)
	}
}

func TestLoadSnapshot(t *testing.T) {
	dir := snapshotFixture(t)
	s, err := Load(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if !s.Cutoff.Equal(time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("cutoff = %v", s.Cutoff)
	}
	if s.ID == uuid.Nil {
		t.Error("snapshot must get an identifier")
	}
	if s.Main.NumRows() != 1 {
		t.Fatalf("main rows = %d", s.Main.NumRows())
	}
	if s.Labels["TV_PR_PRSTDTC"] != "Procedure Date" {
		t.Errorf("label row not captured: %q", s.Labels["TV_PR_PRSTDTC"])
	}
	if len(s.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", s.Warnings)
	}

	if s.AE == nil || s.AE.NumRows() != 3 {
		t.Fatalf("AE sheet = %+v", s.AE)
	}
	if s.CM != nil || s.CVH != nil {
		t.Error("absent sheets must stay nil")
	}

	if s.ACT == nil || s.ACT.NumRows() != 2 {
		t.Fatalf("ACT merge: %+v", s.ACT)
	}
	if s.ACT.Cell(1, "Screening #") != "101-002" || s.ACT.Cell(1, "TEST") != "ACT" {
		t.Error("second ACT sheet must align by column name")
	}
}

func TestLoadMissingMain(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "AE_LOGS.csv", "Screening #\n101-001\n")
	if _, err := Load(dir, zerolog.Nop()); !errors.Is(err, ErrMainSheetNotFound) {
		t.Errorf("err = %v, want ErrMainSheetNotFound", err)
	}
}

func TestValidateSchema(t *testing.T) {
	if w := ValidateSchema(CriticalColumns); w != nil {
		t.Errorf("complete header should not warn: %v", w)
	}
	w := ValidateSchema([]string{"Screening #"})
	if len(w) != 1 || !strings.Contains(w[0], "expected column(s) not found") {
		t.Errorf("warnings = %v", w)
	}
}

func TestCrossFormIssues(t *testing.T) {
	dir := snapshotFixture(t)
	s, err := Load(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	issues := CrossFormIssues(s)
	if len(issues) != 3 {
		t.Fatalf("issues = %v, want 3", issues)
	}
	var fatal, fu, onset bool
	for _, issue := range issues {
		switch {
		case strings.Contains(issue, "death form date is empty"):
			fatal = true
		case strings.Contains(issue, "precedes procedure date"):
			fu = true
		case strings.Contains(issue, "before procedure"):
			onset = true
		}
	}
	if !fatal || !fu || !onset {
		t.Errorf("missing issue kinds in %v", issues)
	}
}
