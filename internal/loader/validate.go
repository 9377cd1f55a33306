package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/fontanka/EDC-check-sub001/internal/crf"
	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// CriticalColumns must exist on the Main or AE sheet for the core features
// to work. Missing ones degrade functionality, so loading only warns.
var CriticalColumns = []string{
	"Screening #",
	"Site #",
	"Status",
	"TV_PR_PRSTDTC",
	"TV_PR_SVDTC",
	"LOGS_AE_AETERM",
	"LOGS_AE_AESTDTC",
	"LOGS_AE_AEONGO",
	"LOGS_AE_AEOUT",
	"LOGS_AE_AESEV",
	"LOGS_AE_AESER",
	"SBV_ELIG_IEORRES_CONF5",
	"LOGS_DTH_DDDTC",
}

// ValidateSchema reports missing critical columns as warning strings.
func ValidateSchema(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, c := range CriticalColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	show := missing
	if len(show) > 10 {
		show = show[:10]
	}
	return []string{fmt.Sprintf("%d expected column(s) not found: %s", len(missing), strings.Join(show, ", "))}
}

// CrossFormIssues runs the cross-form consistency checks over a loaded
// snapshot and returns human-readable issue lines:
//
//	fatal AE outcome without a death form date
//	follow-up visit dated before the procedure
//	post-procedure AE with onset before the procedure
func CrossFormIssues(s *Snapshot) []string {
	var issues []string
	if s == nil || s.Main == nil || s.Main.NumRows() == 0 {
		return issues
	}
	issues = append(issues, fatalWithoutDeathDate(s.Main, s.AE)...)
	issues = append(issues, followupBeforeProcedure(s.Main)...)
	issues = append(issues, onsetBeforeProcedure(s.Main, s.AE)...)
	return issues
}

func findColContaining(t *edc.Table, part string) (string, bool) {
	for _, h := range t.Header {
		if strings.Contains(h, part) {
			return h, true
		}
	}
	return "", false
}

func mainRowFor(main *edc.Table, patient string) (int, bool) {
	for i := 0; i < main.NumRows(); i++ {
		if main.Cell(i, "Screening #") == patient {
			return i, true
		}
	}
	return -1, false
}

func safeDate(t *edc.Table, row int, col string) (time.Time, bool) {
	return edc.ParseDate(edc.CleanDate(t.Cell(row, col)))
}

// fatalWithoutDeathDate flags patients with a fatal AE outcome whose death
// form date is empty.
func fatalWithoutDeathDate(main, aes *edc.Table) []string {
	if aes == nil {
		return nil
	}
	outcomeCol, ok := findColContaining(aes, "AEOUT")
	if !ok {
		return nil
	}
	deathCol, hasDeathCol := findColContaining(main, "DTH_DDDTC")

	seen := make(map[string]bool)
	var issues []string
	for i := 0; i < aes.NumRows(); i++ {
		if !strings.EqualFold(aes.Cell(i, outcomeCol), "fatal") {
			continue
		}
		pid := aes.Cell(i, "Screening #")
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true
		if !hasDeathCol {
			issues = append(issues, fmt.Sprintf("%s: fatal AE but no death form column found in data", pid))
			continue
		}
		row, ok := mainRowFor(main, pid)
		if !ok {
			continue
		}
		if main.Cell(row, deathCol) == "" {
			issues = append(issues, fmt.Sprintf("%s: fatal AE outcome but death form date is empty", pid))
		}
	}
	return issues
}

// followupBeforeProcedure flags follow-up visits dated before the implant
// procedure, walking the study's visit schedule.
func followupBeforeProcedure(main *edc.Table) []string {
	procCol, ok := findColContaining(main, "TV_PR_PRSTDTC")
	if !ok {
		return nil
	}
	type fuCol struct{ name, col string }
	var fuCols []fuCol
	for _, entry := range crf.VisitSchedule {
		if !strings.HasPrefix(entry.DateCol, "FU") {
			continue
		}
		if col, ok := findColContaining(main, entry.DateCol); ok {
			fuCols = append(fuCols, fuCol{entry.Name, col})
		}
	}
	if len(fuCols) == 0 {
		return nil
	}

	var issues []string
	for i := 0; i < main.NumRows(); i++ {
		proc, ok := safeDate(main, i, procCol)
		if !ok {
			continue
		}
		pid := main.Cell(i, "Screening #")
		for _, fc := range fuCols {
			fu, ok := safeDate(main, i, fc.col)
			if ok && fu.Before(proc) {
				issues = append(issues, fmt.Sprintf("%s: %s visit date (%s) precedes procedure date (%s)",
					pid, fc.name, fu.Format("2006-01-02"), proc.Format("2006-01-02")))
			}
		}
	}
	return issues
}

// onsetBeforeProcedure flags adverse events with onset before the procedure
// that are not explicitly marked pre-procedure in the interval field.
func onsetBeforeProcedure(main, aes *edc.Table) []string {
	if aes == nil {
		return nil
	}
	procCol, hasProc := findColContaining(main, "TV_PR_PRSTDTC")
	onsetCol, hasOnset := findColContaining(aes, "AESTDTC")
	if !hasProc || !hasOnset {
		return nil
	}
	intervalCol, hasInterval := findColContaining(aes, "AEINT")
	termCol, hasTerm := findColContaining(aes, "AETERM")

	procDates := make(map[string]time.Time)
	for i := 0; i < main.NumRows(); i++ {
		if d, ok := safeDate(main, i, procCol); ok {
			procDates[main.Cell(i, "Screening #")] = d
		}
	}

	var issues []string
	for i := 0; i < aes.NumRows(); i++ {
		pid := aes.Cell(i, "Screening #")
		proc, ok := procDates[pid]
		if !ok {
			continue
		}
		if hasInterval {
			interval := strings.ToLower(aes.Cell(i, intervalCol))
			if strings.Contains(interval, "pre") {
				continue
			}
		}
		onset, ok := safeDate(aes, i, onsetCol)
		if !ok || !onset.Before(proc) {
			continue
		}
		term := "?"
		if hasTerm {
			if v := aes.Cell(i, termCol); v != "" {
				term = v
			}
		}
		if len(term) > 40 {
			term = term[:40]
		}
		issues = append(issues, fmt.Sprintf("%s: AE %q onset (%s) before procedure (%s) but not marked pre-procedure",
			pid, term, onset.Format("2006-01-02"), proc.Format("2006-01-02")))
	}
	return issues
}
