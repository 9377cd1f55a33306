// Package sdv indexes the monitoring state of every exported field and form:
// which fields the CRA has source-data-verified, which await re-verification,
// and which forms were never submitted for review at all.
package sdv

import "strings"

// Status is the monitoring state of a single field.
type Status string

const (
	StatusHidden       Status = "hidden"        // conditionally hidden in the EDC
	StatusNotSent      Status = "not_sent"      // form or value never submitted
	StatusPending      Status = "pending"       // filled but not verified (red !)
	StatusVerified     Status = "verified"      // manually verified (green check)
	StatusAutoVerified Status = "auto_verified" // verified by a bulk action
	StatusAwaiting     Status = "awaiting"      // changed after verification
	StatusNone         Status = ""              // unknown field or patient
)

// Verified reports whether the status counts as source-data-verified.
func (s Status) Verified() bool { return s == StatusVerified || s == StatusAutoVerified }

// Raw control codes carried by the modular export.
const (
	codeBlank    = 0
	codeVerified = 2
	codeAwaiting = 3
	codeAutoVer  = 4
)

// FieldState is the raw per-field tuple from the modular export.
type FieldState struct {
	Code     int
	Hidden   bool
	HasValue bool
}

// Checkbox field-name patterns. An empty checkbox means "unchecked", not
// "never sent", so blank checkboxes classify as pending rather than NotSent.
var (
	checkboxSubstrings = []string{"ONGO", "OCCUR", "AEACN", "AESAE", "YN"}
	// Suffix-only patterns: "_LT" as a substring would also catch the ALT
	// lab field, "_PR" catches half the procedure columns.
	checkboxSuffixes = []string{"_LTFL", "_PRFL"}
)

// IsCheckbox reports whether a field name denotes a checkbox export column.
func IsCheckbox(fieldName string) bool {
	for _, p := range checkboxSubstrings {
		if strings.Contains(fieldName, p) {
			return true
		}
	}
	for _, p := range checkboxSuffixes {
		if strings.HasSuffix(fieldName, p) {
			return true
		}
	}
	return false
}

// MapStatus resolves a raw field state to its monitoring status. Blank
// control status splits three ways: hidden fields stay hidden, empty
// non-checkbox fields were never sent, everything else is pending review.
func MapStatus(st FieldState, fieldName string) Status {
	switch st.Code {
	case codeBlank:
		if st.Hidden {
			return StatusHidden
		}
		if !st.HasValue && !IsCheckbox(fieldName) {
			return StatusNotSent
		}
		return StatusPending
	case codeVerified:
		return StatusVerified
	case codeAwaiting:
		return StatusAwaiting
	case codeAutoVer:
		return StatusAutoVerified
	}
	return StatusNone
}
