package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")

	c, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DataDir != "." {
		t.Errorf("DataDir = %q, want %q", c.DataDir, ".")
	}
	if c.OutputDir != "reports" {
		t.Errorf("OutputDir = %q, want %q", c.OutputDir, "reports")
	}
	if c.TopN != 10 {
		t.Errorf("TopN = %d, want 10", c.TopN)
	}
	if c.ExcludeScreenFailures || c.ExcludePreProcedure || c.JSONLogs {
		t.Errorf("boolean defaults should be false, got %+v", c)
	}
	if len(c.ExcludedPatients) != 0 {
		t.Errorf("ExcludedPatients = %v, want empty", c.ExcludedPatients)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")

	want := &Global{
		DataDir:               "/data/exports",
		ModularFile:           "/data/sdv/modular.csv",
		HistoryFile:           "/data/sdv/history.csv",
		OutputDir:             "out",
		ExcludedPatients:      []string{"101-001", "102-003"},
		ExcludeScreenFailures: true,
		ExcludePreProcedure:   true,
		TopN:                  5,
		JSONLogs:              true,
	}
	if err := Save(want, cfgFile); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DataDir != want.DataDir || got.ModularFile != want.ModularFile ||
		got.HistoryFile != want.HistoryFile || got.OutputDir != want.OutputDir {
		t.Errorf("paths differ: got %+v", got)
	}
	if len(got.ExcludedPatients) != 2 || got.ExcludedPatients[0] != "101-001" {
		t.Errorf("ExcludedPatients = %v", got.ExcludedPatients)
	}
	if !got.ExcludeScreenFailures || !got.ExcludePreProcedure || !got.JSONLogs {
		t.Errorf("booleans not round-tripped: %+v", got)
	}
	if got.TopN != 5 {
		t.Errorf("TopN = %d, want 5", got.TopN)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	content := "data_dir: /exports\ntop_n: 3\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DataDir != "/exports" {
		t.Errorf("DataDir = %q, want %q", c.DataDir, "/exports")
	}
	if c.TopN != 3 {
		t.Errorf("TopN = %d, want 3", c.TopN)
	}
	if c.OutputDir != "reports" {
		t.Errorf("OutputDir = %q, want default %q", c.OutputDir, "reports")
	}
}
