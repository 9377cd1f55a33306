package cmd

import (
	"fmt"

	"github.com/fontanka/EDC-check-sub001/internal/crf"
	"github.com/fontanka/EDC-check-sub001/internal/edc"
	"github.com/fontanka/EDC-check-sub001/internal/loader"
	"github.com/fontanka/EDC-check-sub001/internal/sdv"
)

// loadSnapshot opens the snapshot named by --snapshot, or the latest export
// under the configured data directory.
func loadSnapshot() (*loader.Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	dir := flagSnapshot
	if dir == "" {
		var err error
		dir, _, err = loader.DetectLatest(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("detecting latest snapshot in %s: %w", cfg.DataDir, err)
		}
	}
	return loader.Load(dir, logger)
}

// loadModular reads the per-field SDV control status sheet.
func loadModular() (*edc.Table, error) {
	if cfg == nil || cfg.ModularFile == "" {
		return nil, fmt.Errorf("modular_file is not configured (edc-check config set modular_file <path>)")
	}
	return loader.LoadTable(cfg.ModularFile, "modular")
}

// loadHistoryRows reads the raw form status history sheet. A missing
// configuration yields an empty history, which downgrades the form-level
// checks rather than failing the run.
func loadHistoryRows() ([][]string, error) {
	if cfg == nil || cfg.HistoryFile == "" {
		logger.Warn().Msg("history_file not configured, form submission states unavailable")
		return nil, nil
	}
	return loader.ReadCSV(cfg.HistoryFile)
}

// loadSDVIndex builds the combined field and form status index.
func loadSDVIndex() (*sdv.Index, error) {
	modular, err := loadModular()
	if err != nil {
		return nil, err
	}
	history, err := loadHistoryRows()
	if err != nil {
		return nil, err
	}
	return sdv.NewIndex(modular, history, logger), nil
}

// snapshotLabels builds the label dictionary from a loaded snapshot, or nil
// when the snapshot is unavailable.
func snapshotLabels(s *loader.Snapshot) *crf.Labels {
	if s == nil || len(s.Labels) == 0 {
		return nil
	}
	return crf.NewLabels(s.Labels)
}

// excludedPatientSet merges the configured exclusions with an extra list.
func excludedPatientSet(extra []string) map[string]bool {
	out := make(map[string]bool)
	if cfg != nil {
		for _, p := range cfg.ExcludedPatients {
			out[p] = true
		}
	}
	for _, p := range extra {
		out[p] = true
	}
	return out
}
