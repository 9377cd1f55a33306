package repeating

import (
	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

// CMGroup is the concomitant-medications repeating group as flattened onto
// the wide export. The frequency fragment also matches the free-text
// companion column; the coded column precedes it in every export seen so
// far, so first match wins.
var CMGroup = GroupSpec{
	BaseFragment: "CMTRT",
	BaseName:     "Medication",
	Fields: []Field{
		{Fragment: "CMDOSE", Name: "Dose"},
		{Fragment: "CMDOSU", Name: "Dose Unit"},
		{Fragment: "CMROUTE", Name: "Route"},
		{Fragment: "CMINDC", Name: "Indication"},
		{Fragment: "CMSTDTC", Name: "Start Date", Date: true},
		{Fragment: "CMENDTC", Name: "End Date", Date: true},
		{Fragment: "CMONGO", Name: "Ongoing"},
		{Fragment: "CMDOSFRQ_OTH", Name: "Frequency (Other)"},
		{Fragment: "CMDOSFRQ", Name: "Frequency"},
	},
}

// Medication is one assembled concomitant-medication entry.
type Medication struct {
	Number     int
	Name       string
	Dose       string
	Unit       string
	Route      string
	Indication string
	Frequency  string
	StartDate  string
	EndDate    string
	DailyDose  string
}

// Medications reconstructs the patient's medication list from one wide-table
// row: ongoing entries get an "Ongoing" end date, coded "Other" frequencies
// are replaced by their free text, and the daily dose is derived from the
// single dose and frequency.
func Medications(t *edc.Table, row int) []Medication {
	recs := CMGroup.Parse(t, row)
	out := make([]Medication, 0, len(recs))
	for _, rec := range recs {
		freq := ParseFrequency(rec.Values["Frequency"], rec.Values["Frequency (Other)"])
		ApplyOngoing(rec, "Ongoing", "End Date")
		ResolveOther(rec, "Frequency", "Frequency (Other)")

		out = append(out, Medication{
			Number:     rec.Index,
			Name:       rec.Values["Medication"],
			Dose:       rec.Values["Dose"],
			Unit:       rec.Values["Dose Unit"],
			Route:      rec.Values["Route"],
			Indication: rec.Values["Indication"],
			Frequency:  rec.Values["Frequency"],
			StartDate:  rec.Values["Start Date"],
			EndDate:    rec.Values["End Date"],
			DailyDose:  DailyDose(rec.Values["Dose"], rec.Values["Dose Unit"], freq),
		})
	}
	return out
}
