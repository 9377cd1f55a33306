package crf

import (
	"regexp"
	"strings"
)

// visitPrefixesUnderscore is the cross-visit substitution set used when
// generating label variants (Logs and Unscheduled codes are never renamed
// across visits).
var visitPrefixesUnderscore = []string{
	"SBV_", "TV_", "DV_",
	"FU1M_", "FU3M_", "FU6M_",
	"FU1Y_", "FU2Y_", "FU3Y_", "FU4Y_", "FU5Y_",
}

// Labels maps column codes to human labels, with generated fallback variants
// to bridge naming differences between the project export and the SDV export.
type Labels struct {
	byCode   map[string]string
	bySuffix map[string]string
}

// NewLabels builds the dictionary from exported (code, label) pairs and
// generates the variant keys:
//
//	first+last part        SBV_DM_AGE      -> SBV_AGE
//	second part dropped    SBV_SV_SVSTDTC  -> SBV_SVSTDTC
//	cross-visit prefix     SBV_FAORRES_X   -> TV_FAORRES_X, DV_..., ...
//
// plus a last-two-token suffix index as the final fallback.
func NewLabels(raw map[string]string) *Labels {
	l := &Labels{
		byCode:   make(map[string]string, len(raw)*2),
		bySuffix: make(map[string]string),
	}
	for code, label := range raw {
		l.byCode[strings.TrimSpace(code)] = label
	}
	for code, label := range raw {
		code = strings.TrimSpace(code)
		parts := strings.Split(code, "_")
		if len(parts) > 2 {
			v1 := parts[0] + "_" + parts[len(parts)-1]
			if _, ok := l.byCode[v1]; !ok {
				l.byCode[v1] = label
			}
			v2 := strings.Join(append([]string{parts[0]}, parts[2:]...), "_")
			if _, ok := l.byCode[v2]; !ok {
				l.byCode[v2] = label
			}
		}
		for _, prefix := range visitPrefixesUnderscore {
			if !strings.HasPrefix(code, prefix) {
				continue
			}
			suffix := code[len(prefix):]
			for _, alt := range visitPrefixesUnderscore {
				if alt == prefix {
					continue
				}
				if _, ok := l.byCode[alt+suffix]; !ok {
					l.byCode[alt+suffix] = label
				}
			}
			break
		}
	}
	for code, label := range l.byCode {
		parts := strings.Split(code, "_")
		if len(parts) >= 2 {
			suffix2 := strings.Join(parts[len(parts)-2:], "_")
			if _, ok := l.bySuffix[suffix2]; !ok {
				l.bySuffix[suffix2] = label
			}
		}
	}
	return l
}

// Get resolves a column code to its display label, trying the exact code,
// then the last-two-token suffix, then the code itself.
func (l *Labels) Get(code string) string {
	if l == nil {
		return code
	}
	code = strings.TrimSpace(code)
	if label, ok := l.byCode[code]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	parts := strings.Split(code, "_")
	if len(parts) >= 2 {
		if label, ok := l.bySuffix[strings.Join(parts[len(parts)-2:], "_")]; ok {
			return label
		}
	}
	return code
}

// Each calls fn for every indexed (code, label) pair, generated variants
// included.
func (l *Labels) Each(fn func(code, label string)) {
	if l == nil {
		return
	}
	for code, label := range l.byCode {
		fn(code, label)
	}
}

// Len returns the number of indexed codes including generated variants.
func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byCode)
}

var bracketAnnotationRe = regexp.MustCompile(`\[.*?\]`)

// CleanLabel strips export artifacts from a display label: bracketed variable
// annotations, the _x0009_ tab encoding, and owner prefixes. A few known
// verbose labels are shortened.
func CleanLabel(label string) string {
	txt := strings.TrimSpace(bracketAnnotationRe.ReplaceAllString(label, ""))
	txt = strings.ReplaceAll(txt, "_x0009_", "")
	for _, prefix := range []string{"Sponsor/", "Sponsor ", "Core Lab/", "Core Lab "} {
		if strings.HasPrefix(txt, prefix) {
			txt = txt[len(prefix):]
		}
	}
	lower := strings.ToLower(txt)
	switch {
	case strings.Contains(lower, "post-treatment hospitalizations") && strings.Contains(lower, "status"):
		return "Hospitalization Occurred?"
	case strings.Contains(lower, "reason for hospitalization"):
		return "Reason"
	case strings.Contains(lower, "occurrence of heart failure"):
		return "HF Hospitalization?"
	}
	return strings.TrimSpace(txt)
}
