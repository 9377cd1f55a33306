package repeating

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Frequency is the parsed form of a dosing-frequency cell.
type Frequency struct {
	// Multiplier converts a single dose to a daily dose. nil when no daily
	// equivalent exists (PRN, continuous infusion).
	Multiplier *float64
	// Note annotates the display ("PRN", "(every 48h)").
	Note string
	// OverrideDose replaces the computed daily dose outright, used when the
	// free text spells out multiple absolute doses.
	OverrideDose *float64
}

var (
	mgDoseRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mg`)
	qHoursRe   = regexp.MustCompile(`^q\s*(\d+)\s*h`)
	defaultOne = 1.0
)

func mult(m float64, note string) Frequency {
	v := m
	return Frequency{Multiplier: &v, Note: note}
}

// ParseFrequency interprets a coded frequency value plus its free-text
// "other" companion. Unknown codes pass through as once daily.
func ParseFrequency(freq, freqOther string) Frequency {
	f := strings.ToLower(strings.TrimSpace(freq))
	switch f {
	case "", "nan", "none":
		return Frequency{Multiplier: &defaultOne}
	case "once a day", "qd", "od":
		return mult(1, "")
	case "twice a day", "bid":
		return mult(2, "")
	case "3 times a day", "tid":
		return mult(3, "")
	case "4 times a day", "qid":
		return mult(4, "")
	case "every other day", "qod":
		return mult(0.5, "(every 48h)")
	case "as needed":
		return Frequency{Note: "PRN"}
	case "once":
		return mult(1, "(single dose)")
	case "other":
		return parseOtherFrequency(freqOther)
	}
	return mult(1, "")
}

func parseOtherFrequency(freqOther string) Frequency {
	raw := strings.TrimSpace(freqOther)
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "none") {
		return mult(1, "")
	}
	other := strings.ToLower(raw)

	// Several absolute doses spelled out: the daily dose is their sum.
	if matches := mgDoseRe.FindAllStringSubmatch(other, -1); len(matches) > 1 {
		total := 0.0
		for _, m := range matches {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return mult(1, "("+raw+")")
			}
			total += v
		}
		return Frequency{Note: "(" + raw + ")", OverrideDose: &total}
	}

	if strings.Contains(other, "every other day") || strings.Contains(other, "qod") {
		return mult(0.5, "(every 48h)")
	}

	if m := qHoursRe.FindStringSubmatch(other); m != nil {
		hours, _ := strconv.Atoi(m[1])
		if hours > 0 {
			perDay := 24 / hours
			return mult(float64(perDay), fmt.Sprintf("(q%dh->%dx/d)", hours, perDay))
		}
	}

	if strings.Contains(other, "continuous") {
		return Frequency{Note: "(continuous)"}
	}

	return mult(1, "("+raw+")")
}

// DailyDose formats the daily dose for a record, or a dose-with-note when no
// daily equivalent exists. Returns "" when the dose cell is not numeric.
func DailyDose(dose, unit string, f Frequency) string {
	dose = strings.TrimSpace(dose)
	if dose == "" || strings.EqualFold(dose, "nan") || strings.EqualFold(dose, "none") {
		return ""
	}
	single, err := strconv.ParseFloat(dose, 64)
	if err != nil {
		return ""
	}

	var daily float64
	switch {
	case f.OverrideDose != nil:
		daily = *f.OverrideDose
	case f.Multiplier != nil:
		daily = single * *f.Multiplier
	default:
		if f.Note != "" {
			return fmt.Sprintf("%s %s", trimFloat(single), f.Note)
		}
		return ""
	}

	s := trimFloat(daily)
	unit = strings.TrimSpace(unit)
	if unit != "" && !strings.EqualFold(unit, "nan") && !strings.EqualFold(unit, "none") {
		if strings.Contains(strings.ToLower(unit), "milligram") {
			unit = "mg"
		}
		return s + " " + unit + "/day"
	}
	return s + "/day"
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
