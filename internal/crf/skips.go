package crf

import "strings"

// AnyValue marks a skip rule that fires whenever its trigger field holds any
// non-empty value.
const AnyValue = "*ANY*"

// SkipRule suppresses target fields once its trigger field is answered.
type SkipRule struct {
	// TriggerValue is matched as a case-insensitive substring of the
	// trigger field's value, or AnyValue.
	TriggerValue string
	// Targets are field-name fragments suppressed while the rule is active.
	Targets []string
}

// ConditionalSkips maps a trigger field fragment to its rule. A field whose
// code contains the trigger fragment activates the rule for fields on the
// same form containing any target fragment.
var ConditionalSkips = map[string]SkipRule{
	"FTORRES_COMPL": {TriggerValue: "completed", Targets: []string{"REASNC", "REASND"}},
	"FTORRES_INC":   {TriggerValue: "yes", Targets: []string{"INCD"}},
	"PESTAT":        {TriggerValue: "yes", Targets: []string{"REASND"}},
	"VSSTAT":        {TriggerValue: "yes", Targets: []string{"REASND"}},
	"RSSTAT":        {TriggerValue: "yes", Targets: []string{"REASND"}},
	"QSSTAT":        {TriggerValue: "yes", Targets: []string{"REASND"}},
	"PERF":          {TriggerValue: "yes", Targets: []string{"REASND"}},
	// Full date of birth supersedes partial/year-only capture.
	"BRTHDAT": {TriggerValue: AnyValue, Targets: []string{"BRTHYR", "AGE_YR", "DOB_YR", "PARTIAL", "BRTHDAT_YEAR", "BRTHDAT_PARTIAL"}},
	// Childbearing potential is collected for female subjects only.
	"SEX":    {TriggerValue: "male", Targets: []string{"CHILDPOT", "F_CHILDPOT", "NFFORRS_F"}},
	"RACE":   {TriggerValue: AnyValue, Targets: []string{"RACE_AIAN", "RACE_ASIA", "RACE_BLAA", "RACE_NHPI", "RACE_WHIT", "RACE_OTH"}},
	"ETHNIC": {TriggerValue: AnyValue, Targets: []string{"ETHNIC_OTH"}},
	// A recorded vital-sign result suppresses its own "not done" flag.
	"VSORRES":        {TriggerValue: AnyValue, Targets: []string{"VSSTAT"}},
	"VSORRES_RISP":   {TriggerValue: AnyValue, Targets: []string{"VSSTAT_RISP"}},
	"VSORRES_HR":     {TriggerValue: AnyValue, Targets: []string{"VSSTAT_HR"}},
	"VSORRES_TEMP":   {TriggerValue: AnyValue, Targets: []string{"VSSTAT_TEMP"}},
	"VSORRES_DIABP":  {TriggerValue: AnyValue, Targets: []string{"VSSTAT_DIABP"}},
	"VSORRES_SYSBP":  {TriggerValue: AnyValue, Targets: []string{"VSSTAT_SYSBP"}},
	"VSORRES_WEIGHT": {TriggerValue: AnyValue, Targets: []string{"VSSTAT_WEIGHT"}},
	"VSORRES_HEIGHT": {TriggerValue: AnyValue, Targets: []string{"VSSTAT_HEIGHT"}},
}

// Triggered reports whether the rule fires for the given trigger value.
func (r SkipRule) Triggered(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if r.TriggerValue == AnyValue {
		return true
	}
	return strings.Contains(strings.ToLower(value), r.TriggerValue)
}

// SkippedTargets collects the target fragments of every skip rule activated
// by the given field values. lookup returns the current value of any field
// whose code contains the trigger fragment.
func SkippedTargets(lookup func(triggerFragment string) string) []string {
	var out []string
	for trigger, rule := range ConditionalSkips {
		if rule.Triggered(lookup(trigger)) {
			out = append(out, rule.Targets...)
		}
	}
	return out
}
