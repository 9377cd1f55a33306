package edc

import (
	"regexp"
	"strings"
	"time"
)

// Null sentinels produced by the export pipeline. Matched case-insensitively
// after trimming.
var nullSentinels = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"nat":  true,
	"<na>": true,
	"null": true,
}

// Clean trims a raw cell, collapses non-breaking spaces, and maps export null
// sentinels to the empty string.
func Clean(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	if nullSentinels[strings.ToLower(s)] {
		return ""
	}
	return s
}

// HasValue reports whether the raw cell carries real data.
func HasValue(s string) bool { return Clean(s) != "" }

// StripFloatSuffix removes a trailing ".0" left by numeric round-tripping of
// identifiers and repeat numbers.
func StripFloatSuffix(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".0")
}

var (
	trailingTimeRe = regexp.MustCompile(`\s+\d{1,2}:\d{2}(:\d{2})?$`)
	timeUnknownRe  = regexp.MustCompile(`(?i),?\s*time unknown`)
)

// CleanDate normalizes an exported date string to its date part: the ISO time
// component after 'T' is dropped, a trailing clock time is dropped, and the
// ", time unknown" annotation is removed.
func CleanDate(s string) string {
	s = Clean(s)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "T"); i > 0 {
		s = s[:i]
	}
	s = timeUnknownRe.ReplaceAllString(s, "")
	s = trailingTimeRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var dateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses a cleaned date string against the layouts the export
// emits. The ok result is false for blank or unparseable input; callers treat
// that as "date unknown" rather than an error.
func ParseDate(s string) (time.Time, bool) {
	s = CleanDate(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// checkedValues are the forms a checkbox export takes when ticked.
var checkedValues = map[string]bool{
	"1":       true,
	"1.0":     true,
	"true":    true,
	"yes":     true,
	"checked": true,
	"x":       true,
}

// IsChecked reports whether a checkbox cell is ticked.
func IsChecked(s string) bool {
	return checkedValues[strings.ToLower(Clean(s))]
}

// Site derives the site code from a patient identifier: everything before the
// first dash ("101-003" belongs to site "101").
func Site(patientID string) string {
	patientID = Clean(patientID)
	if i := strings.Index(patientID, "-"); i > 0 {
		return patientID[:i]
	}
	return patientID
}
