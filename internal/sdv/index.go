package sdv

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// Index combines the two monitoring sources: per-field control states from
// the modular export and form-level submission history.
type Index struct {
	Fields  *FieldIndex
	History *HistoryIndex
}

// NewIndex builds the combined index. Either source may be nil-equivalent
// (empty tables); lookups degrade to what the remaining source can answer.
func NewIndex(modular *edc.Table, historyRows [][]string, log zerolog.Logger) *Index {
	return &Index{
		Fields:  NewFieldIndex(modular, log),
		History: NewHistoryIndex(historyRows, log),
	}
}

// FieldStatus resolves a field's monitoring status. The form-level check
// runs first: fields of a form that was created but never submitted are
// NotSent regardless of their own control state. tableRow 0 means the field
// is not part of a repeating table.
func (x *Index) FieldStatus(patient, fieldID string, tableRow int, formName, visitName string) Status {
	if formName != "" && x.History.Len() > 0 {
		repeat := ""
		if tableRow > 0 {
			repeat = strconv.Itoa(tableRow)
		}
		if x.History.FormNotSent(patient, formName, visitName, repeat) {
			return StatusNotSent
		}
	}
	return x.Fields.Status(patient, fieldID, tableRow)
}

// FormVerified reports whether the whole form currently sits in the verified
// state.
func (x *Index) FormVerified(patient, formName, visitName, repeat string) bool {
	_, entry, ok := x.History.lookup(patient, formName, visitName, repeat)
	return ok && isVerifiedStatus(entry.VerStatus)
}
