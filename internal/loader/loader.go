// Package loader finds and reads study export snapshots. A snapshot is a
// directory of CSV sheets produced from one ProjectToOneFile export: the Main
// sheet (wide, one row per patient) plus the repeating-form sheets.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// FilePrefix marks project export snapshots in a data directory.
const FilePrefix = "Innoventric_CLD-048_DM_ProjectToOneFile"

var (
	ErrNoSnapshot        = errors.New("no project export snapshot found")
	ErrMainSheetNotFound = errors.New("main sheet not found in snapshot")
)

// Snapshot is one loaded export.
type Snapshot struct {
	ID     uuid.UUID
	Dir    string
	Cutoff time.Time // data cutoff parsed from the export name

	Main *edc.Table // wide per-patient sheet, row 0 codes, row 1 labels
	AE   *edc.Table
	CM   *edc.Table
	CVH  *edc.Table
	ACT  *edc.Table

	Labels   map[string]string // column code -> human label from the Main sheet
	Warnings []string
}

var (
	timestampRe = regexp.MustCompile(`_(\d{2}-\d{2}-\d{4}_\d{2}-\d{2}[-_]\d{2})(_|$)`)
	// The exporter has shipped both separators between minutes and seconds.
	timestampLayouts = []string{"02-01-2006_15-04_05", "02-01-2006_15-04-05"}
)

// ParseCutoff extracts the export timestamp from a snapshot name.
func ParseCutoff(name string) (time.Time, bool) {
	m := timestampRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DetectLatest finds the most recent export snapshot directory under dir,
// judged by the timestamp embedded in the name. Entries without a parseable
// timestamp are ignored.
func DetectLatest(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("listing %s: %w", dir, err)
	}
	var (
		latest     string
		latestTime time.Time
	)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		t, ok := ParseCutoff(e.Name())
		if !ok {
			continue
		}
		if latest == "" || t.After(latestTime) {
			latest = e.Name()
			latestTime = t
		}
	}
	if latest == "" {
		return "", time.Time{}, ErrNoSnapshot
	}
	return filepath.Join(dir, latest), latestTime, nil
}

// ReadCSV reads a whole CSV file with ragged rows allowed.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// LoadTable reads a plain CSV sheet with the header on row 0.
func LoadTable(path, name string) (*edc.Table, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty sheet", path)
	}
	return edc.NewTable(name, rows[0], rows[1:]), nil
}

// Load reads a snapshot directory. The Main sheet is required; missing
// auxiliary sheets are recorded as warnings.
func Load(dir string, log zerolog.Logger) (*Snapshot, error) {
	s := &Snapshot{
		ID:     uuid.New(),
		Dir:    dir,
		Labels: make(map[string]string),
	}
	if cutoff, ok := ParseCutoff(filepath.Base(dir)); ok {
		s.Cutoff = cutoff
	}

	names, err := sheetNames(dir)
	if err != nil {
		return nil, err
	}

	mainName := ""
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "main") {
			mainName = n
			break
		}
	}
	if mainName == "" {
		return nil, fmt.Errorf("%s: %w", dir, ErrMainSheetNotFound)
	}
	if err := s.loadMain(filepath.Join(dir, mainName)); err != nil {
		return nil, err
	}
	s.Warnings = append(s.Warnings, ValidateSchema(s.Main.Header)...)

	loadAux := func(prefix, label string) *edc.Table {
		for _, n := range names {
			if !strings.HasPrefix(n, prefix) {
				continue
			}
			t, err := LoadTable(filepath.Join(dir, n), label)
			if err != nil {
				s.Warnings = append(s.Warnings, fmt.Sprintf("error loading %s sheet: %v", label, err))
				log.Warn().Err(err).Str("sheet", n).Msg("auxiliary sheet failed to load")
				return nil
			}
			return t
		}
		return nil
	}
	s.AE = loadAux("AE_", "AE")
	s.CM = loadAux("CMTAB", "CM")
	s.CVH = loadAux("CVH_TABLE", "CVH")
	s.ACT = s.loadACT(dir, names, log)

	log.Info().
		Str("snapshot", filepath.Base(dir)).
		Int("patients", s.Main.NumRows()).
		Int("columns", len(s.Main.Header)).
		Int("warnings", len(s.Warnings)).
		Msg("snapshot loaded")
	return s, nil
}

func sheetNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// loadMain parses the wide sheet: row 0 holds column codes, row 1 the human
// labels, data starts on row 2.
func (s *Snapshot) loadMain(path string) error {
	rows, err := ReadCSV(path)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s: need a code row and a label row", path)
	}
	codes := rows[0]
	labels := rows[1]
	for i, code := range codes {
		code = strings.TrimSpace(code)
		if i < len(labels) {
			s.Labels[code] = strings.TrimSpace(labels[i])
		}
	}
	s.Main = edc.NewTable("Main", codes, rows[2:])
	return nil
}

// loadACT merges the activity lab sheets, which the exporter splits across
// several files once they grow. Rows from later sheets are aligned to the
// first sheet's header by column name.
func (s *Snapshot) loadACT(dir string, names []string, log zerolog.Logger) *edc.Table {
	var parts []*edc.Table
	for _, n := range names {
		if !strings.HasPrefix(n, "LB_ACT") {
			continue
		}
		t, err := LoadTable(filepath.Join(dir, n), "ACT")
		if err != nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("error loading ACT sheet %s: %v", n, err))
			log.Warn().Err(err).Str("sheet", n).Msg("ACT sheet failed to load")
			continue
		}
		parts = append(parts, t)
		log.Debug().Str("sheet", n).Int("rows", t.NumRows()).Msg("loaded ACT sheet")
	}
	if len(parts) == 0 {
		return nil
	}
	if len(parts) == 1 {
		return parts[0]
	}
	base := parts[0]
	merged := make([][]string, 0, base.NumRows())
	merged = append(merged, base.Rows...)
	for _, p := range parts[1:] {
		for i := 0; i < p.NumRows(); i++ {
			row := make([]string, len(base.Header))
			for j, col := range base.Header {
				row[j] = p.RawCell(i, col)
			}
			merged = append(merged, row)
		}
	}
	return edc.NewTable("ACT", base.Header, merged)
}
