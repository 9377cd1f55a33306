package sdv

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// FieldIndex resolves per-field monitoring state from the modular export,
// which carries one row per (patient, field instance) with the raw control
// status code.
type FieldIndex struct {
	// byPatient maps patient -> key -> state. Every field is indexed up to
	// three ways: raw variable name, constructed visit_form_suffix key,
	// and the export's own field key when it carries a row marker.
	byPatient map[string]map[string]FieldState

	table *edc.Table
	log   zerolog.Logger
}

// Modular export column names.
const (
	colSubject   = "Subject Screening #"
	colVarName   = "Variable name"
	colVarValue  = "Variable Value"
	colCtrlState = "CRA_CONTROL_STATUS"
	colHidden    = "Hidden"
	colTableRow  = "Table row #"
	colRepeat    = "Repeatable form #"
	colVisitCode = "Visit Code"
	colFormCode  = "Form Code"
	colFieldKey  = "Field Key"
)

// NewFieldIndex builds the per-patient field index from the modular table.
func NewFieldIndex(t *edc.Table, log zerolog.Logger) *FieldIndex {
	f := &FieldIndex{byPatient: make(map[string]map[string]FieldState), table: t, log: log}
	for i := 0; i < t.NumRows(); i++ {
		varName := t.Cell(i, colVarName)
		if varName == "" {
			continue
		}
		patient := edc.StripFloatSuffix(t.Cell(i, colSubject))
		if patient == "" {
			continue
		}
		state := FieldState{
			Code:     atoiDefault(t.Cell(i, colCtrlState), 0),
			Hidden:   atoiDefault(t.Cell(i, colHidden), 0) == 1,
			HasValue: t.Cell(i, colVarValue) != "",
		}

		dict := f.byPatient[patient]
		if dict == nil {
			dict = make(map[string]FieldState)
			f.byPatient[patient] = dict
		}
		updateIndex(dict, varName, state)

		visitCode := t.Cell(i, colVisitCode)
		formCode := t.Cell(i, colFormCode)
		if ck := constructedKey(varName, visitCode, formCode); ck != varName {
			updateIndex(dict, ck, state)
		}
		if fk := t.Cell(i, colFieldKey); fk != "" && strings.Contains(fk, "#") {
			updateIndex(dict, fk, state)
		}
	}
	log.Info().Int("patients", len(f.byPatient)).Msg("modular field index built")
	return f
}

func atoiDefault(s string, def int) int {
	s = edc.StripFloatSuffix(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// constructedKey rebuilds the visit_form_suffix key used by display code:
// the visit prefix is stripped off the variable name and re-joined with the
// form code in between.
func constructedKey(varName, visitCode, formCode string) string {
	suffix := varName
	if visitCode != "" && strings.HasPrefix(varName, visitCode+"_") {
		suffix = varName[len(visitCode)+1:]
	}
	switch {
	case visitCode != "" && formCode != "":
		return visitCode + "_" + formCode + "_" + suffix
	case visitCode != "":
		return visitCode + "_" + suffix
	}
	return varName
}

// updateIndex applies the conflict policy when the same key appears more than
// once: visible beats hidden, filled beats empty, later beats earlier.
func updateIndex(dict map[string]FieldState, key string, state FieldState) {
	old, ok := dict[key]
	if !ok {
		dict[key] = state
		return
	}
	switch {
	case old.Hidden && !state.Hidden:
		dict[key] = state
	case old.Hidden == state.Hidden:
		if !old.HasValue && state.HasValue {
			dict[key] = state
		} else if old.HasValue == state.HasValue {
			dict[key] = state
		}
	}
}

// State returns the raw field state for a patient's field, trying the
// row-qualified key forms first when a table row is given.
func (f *FieldIndex) State(patient, fieldID string, tableRow int) (FieldState, string, bool) {
	patient = strings.TrimSpace(patient)
	fieldID = strings.TrimSpace(fieldID)
	dict, ok := f.byPatient[patient]
	if !ok {
		return FieldState{}, "", false
	}

	if tableRow > 0 {
		slashKey := strings.ReplaceAll(fieldID, "_", "/")
		rowKey := slashKey + "#" + strconv.Itoa(tableRow)
		if st, ok := dict[rowKey]; ok {
			return st, rowKey, true
		}
		// Infix row markers (LOGS/AE#1/AETERM): scan for the marker, strip
		// it, and compare normalized forms.
		marker := "#" + strconv.Itoa(tableRow)
		parts := strings.Split(fieldID, "_")
		for _, key := range sortedKeys(dict) {
			if !strings.Contains(key, marker) {
				continue
			}
			cleaned := strings.Replace(key, marker, "", 1)
			if cleaned == slashKey {
				return dict[key], key, true
			}
			norm := strings.ReplaceAll(cleaned, "/", "_")
			if strings.Contains(norm, fieldID) || strings.HasSuffix(norm, fieldID) ||
				(len(parts) >= 2 && strings.HasSuffix(norm, strings.Join(parts[1:], "_"))) {
				return dict[key], key, true
			}
		}
	}

	if st, ok := dict[fieldID]; ok {
		return st, fieldID, true
	}

	// Table field queried without a row: any row of it will do.
	slashKey := strings.ReplaceAll(fieldID, "_", "/")
	for _, key := range sortedKeys(dict) {
		if strings.HasPrefix(key, slashKey+"#") {
			return dict[key], key, true
		}
	}
	return FieldState{}, "", false
}

// sortedKeys keeps scan-based fallbacks deterministic.
func sortedKeys(dict map[string]FieldState) []string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status maps a field lookup straight to its monitoring status.
func (f *FieldIndex) Status(patient, fieldID string, tableRow int) Status {
	st, _, ok := f.State(patient, fieldID, tableRow)
	if !ok {
		return StatusNone
	}
	return MapStatus(st, fieldID)
}

// Patients lists indexed patients in sorted order.
func (f *FieldIndex) Patients() []string {
	out := make([]string, 0, len(f.byPatient))
	for p := range f.byPatient {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats are per-scope field counts by monitoring state.
type Stats struct {
	Verified int
	Pending  int
	Awaiting int
	Hidden   int
}

// Total sums all counted fields.
func (s Stats) Total() int { return s.Verified + s.Pending + s.Awaiting + s.Hidden }

// PatientStats counts the patient's indexed fields by status. NotSent and
// pending fields both count as pending: either way the CRA has work left.
func (f *FieldIndex) PatientStats(patient string) Stats {
	var s Stats
	dict, ok := f.byPatient[strings.TrimSpace(patient)]
	if !ok {
		return s
	}
	for key, st := range dict {
		switch MapStatus(st, key) {
		case StatusVerified, StatusAutoVerified:
			s.Verified++
		case StatusPending, StatusNotSent:
			s.Pending++
		case StatusAwaiting:
			s.Awaiting++
		case StatusHidden:
			s.Hidden++
		}
	}
	return s
}

// TotalStats sums PatientStats over all patients.
func (f *FieldIndex) TotalStats() Stats {
	var total Stats
	for p := range f.byPatient {
		s := f.PatientStats(p)
		total.Verified += s.Verified
		total.Pending += s.Pending
		total.Awaiting += s.Awaiting
		total.Hidden += s.Hidden
	}
	return total
}

// AERepeatNumber resolves the repeatable-form number of an adverse event by
// its term, skipping comment fields that echo the term text. matchIndex
// selects among duplicate terms.
func (f *FieldIndex) AERepeatNumber(patient, aeTerm string, matchIndex int) (string, bool) {
	return f.findRowMarker(patient, aeTerm, matchIndex, func(formCode, varName string) bool {
		return formCode == "AE" && strings.Contains(varName, "AETERM") && !strings.Contains(varName, "COMM")
	}, colRepeat)
}

// LabRowNumber resolves the table row of an additional-lab entry by its test
// name.
func (f *FieldIndex) LabRowNumber(patient, labTest string, matchIndex int) (string, bool) {
	return f.findRowMarker(patient, labTest, matchIndex, func(formCode, varName string) bool {
		return formCode == "LB_PR_OTH" && strings.Contains(varName, "TEST")
	}, colTableRow)
}

func (f *FieldIndex) findRowMarker(patient, value string, matchIndex int, match func(formCode, varName string) bool, rowCol string) (string, bool) {
	if f.table == nil {
		return "", false
	}
	patient = strings.TrimSpace(patient)
	value = strings.TrimSpace(value)
	seen := 0
	for i := 0; i < f.table.NumRows(); i++ {
		if edc.StripFloatSuffix(f.table.Cell(i, colSubject)) != patient {
			continue
		}
		if !match(f.table.Cell(i, colFormCode), f.table.Cell(i, colVarName)) {
			continue
		}
		if strings.TrimSpace(f.table.RawCell(i, colVarValue)) != value {
			continue
		}
		if seen == matchIndex {
			n := edc.StripFloatSuffix(f.table.Cell(i, rowCol))
			if n == "" {
				return "", false
			}
			return n, true
		}
		seen++
	}
	return "", false
}
