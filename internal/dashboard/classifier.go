// Package dashboard classifies every exported field instance into one of
// four quality metrics and aggregates the counts for review:
//
//	NS   form created but never submitted to monitoring
//	V    field source-data-verified
//	!    field pending verification (filled, changed, or empty-but-expected)
//	GAP  field empty on a form that has been started
//
// A long stack of suppression rules reclassifies empty fields that are
// legitimately blank (unchecked options, secondary status flags, optional
// comments) from GAP to pending so monitors review them without chasing
// false gaps.
package dashboard

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fontanka/EDC-check-sub001/internal/crf"
	"github.com/fontanka/EDC-check-sub001/internal/edc"
	"github.com/fontanka/EDC-check-sub001/internal/sdv"
)

// Metric values.
const (
	MetricNotSent  = "NS"
	MetricVerified = "V"
	MetricPending  = "!"
	MetricGap      = "GAP"
)

// Detail is one classified field instance.
type Detail struct {
	Patient  string
	Site     string
	Visit    string
	Form     string
	Field    string // cleaned display label
	FieldID  string // raw variable name
	Value    string
	TableRow string
	Metric   string
	// Verification decoration, filled for V rows on demand.
	VerifiedBy string
	Date       string
}

// Options restricts a classification pass.
type Options struct {
	// ExcludedPatients are dropped before classification.
	ExcludedPatients map[string]bool
	// Patient limits the pass to a single patient when non-empty.
	Patient string
}

// Classifier runs classification passes over a loaded snapshot. It holds
// only immutable inputs, so concurrent passes with different options are
// safe.
type Classifier struct {
	modular *edc.Table
	history *sdv.HistoryIndex
	labels  *crf.Labels
	log     zerolog.Logger
}

// NewClassifier wires the classifier to its inputs. labels may be nil.
func NewClassifier(modular *edc.Table, history *sdv.HistoryIndex, labels *crf.Labels, log zerolog.Logger) *Classifier {
	return &Classifier{modular: modular, history: history, labels: labels, log: log}
}

// row is one preprocessed modular line.
type row struct {
	Patient  string
	Site     string
	Visit    string
	Form     string
	VarName  string
	Value    string
	HasValue bool
	Hidden   bool
	Code     int
	TableRow string
}

type formKey struct{ patient, form, visit string }
type rowKey struct {
	patient, form, visit, tableRow string
}
type fieldKey struct {
	patient, form, visit, tableRow, varName string
}

func lowerForm(r row) formKey {
	return formKey{strings.ToLower(r.Patient), strings.ToLower(r.Form), strings.ToLower(r.Visit)}
}
func lowerRow(r row) rowKey {
	return rowKey{strings.ToLower(r.Patient), strings.ToLower(r.Form), strings.ToLower(r.Visit), r.TableRow}
}

var (
	statRe          = regexp.MustCompile(`(?i)(STAT_|STAT$|_STAT)`)
	labMetaRe       = regexp.MustCompile(`(?i)(LBORNRLO|LBORNRHI|LBORRESUN|LBORRESU|REASND|PRSCAT|SUPPPR|LOGS_LBREF|LBCOMMENT)`)
	dateFieldRe     = regexp.MustCompile(`(?i)(EGDTC|_DTC$|_DTC_|LBDTC)`)
	orresRe         = regexp.MustCompile(`(?i)ORRES`)
	reasonRe        = regexp.MustCompile(`(?i)(REASND|REASON)`)
	ecgCheckboxRe   = regexp.MustCompile(`(?i)(_ABN|_EGORRES_)`)
	egRhythmRe      = regexp.MustCompile(`(?i)EGORRES_RHYTHM`)
	aeOngoingRe     = regexp.MustCompile(`(?i)(AEONGO|AONGO|_ONGO)`)
	aeEndDateRe     = regexp.MustCompile(`(?i)(AEENDTC|AEEN)`)
	saeCommentRe    = regexp.MustCompile(`(?i)(AETERM_COMM|SEQUELAE|SAE.*COMM)`)
	cmOngoingRe     = regexp.MustCompile(`(?i)(CMONGO|_ONGO)`)
	cmEndDateRe     = regexp.MustCompile(`(?i)(CMENDTC|CMEN)`)
	mhOngoingRe     = regexp.MustCompile(`(?i)MHONGO`)
	mhEndDateRe     = regexp.MustCompile(`(?i)(MHENDTC|MHEN)`)
	pgaCommentRe    = regexp.MustCompile(`(?i)(COMM|PGA)`)
	partialCheckRe  = regexp.MustCompile(`(?i)_PARTIAL_CHECKBOX`)
	partialSuffixRe = regexp.MustCompile(`(?i)_PARTIAL`)
	pestatRe        = regexp.MustCompile(`(?i)PESTAT`)
	timuncRe        = regexp.MustCompile(`(?i)TIMUNC`)
)

// Sister-form pairs: a core-lab echo reading implies its site form was
// performed even when the site entries are still empty.
var echoCoreToSite = map[string]string{
	"Echocardiography - Core lab":                              "Echocardiography",
	"Echocardiography – Core lab":                              "Echocardiography",
	"Echocardiography – 1 day prior the procedure - Core lab":  "Echocardiography – 1 day prior the procedure",
	"Echocardiography – 1-day post procedure - Core lab":       "Echocardiography – 1-day post procedure",
	"Echocardiography – Pre and Post procedure - Core lab":     "Echocardiography – Pre and Post procedure",
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// preprocess reads the modular table into rows, applying the Options filter.
func (c *Classifier) preprocess(opt Options) []row {
	t := c.modular
	formCol := "Form name"
	if !t.HasCol(formCol) {
		if t.HasCol("Form Name") {
			formCol = "Form Name"
		} else {
			formCol = "Form Code"
		}
	}
	visitCol := "Visit name"
	if !t.HasCol(visitCol) {
		visitCol = "Folder Name"
	}

	rows := make([]row, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		patient := edc.StripFloatSuffix(t.Cell(i, "Subject Screening #"))
		if patient == "" {
			continue
		}
		if opt.ExcludedPatients[patient] {
			continue
		}
		if opt.Patient != "" && patient != opt.Patient {
			continue
		}
		value := t.Cell(i, "Variable Value")
		tableRow := 0
		if n, err := strconv.Atoi(edc.StripFloatSuffix(t.Cell(i, "Table row #"))); err == nil {
			tableRow = n
		}
		rows = append(rows, row{
			Patient:  patient,
			Site:     edc.Site(patient),
			Visit:    t.Cell(i, visitCol),
			Form:     t.Cell(i, formCol),
			VarName:  t.Cell(i, "Variable name"),
			Value:    value,
			HasValue: value != "",
			Hidden:   edc.StripFloatSuffix(t.Cell(i, "Hidden")) == "1",
			Code:     atoiDefault(t.Cell(i, "CRA_CONTROL_STATUS")),
			TableRow: strconv.Itoa(tableRow),
		})
	}
	return rows
}

func atoiDefault(s string) int {
	n, err := strconv.Atoi(edc.StripFloatSuffix(strings.TrimSpace(s)))
	if err != nil {
		return 0
	}
	return n
}

// Classify runs a full classification pass and returns the classified field
// instances. Each call computes from scratch; no state is shared between
// passes.
func (c *Classifier) Classify(opt Options) []Detail {
	rows := c.preprocess(opt)
	if len(rows) == 0 {
		return nil
	}

	// Form-level submission state from the status history. The history key
	// repeat number stands in for the modular table row.
	notSent := make(map[rowKey]bool)
	verifiedForms := make(map[rowKey]bool)
	for key, entry := range c.history.Entries() {
		parts := strings.Split(key, "|")
		if len(parts) < 4 {
			continue
		}
		k := rowKey{strings.ToLower(parts[0]), strings.ToLower(parts[2]), strings.ToLower(parts[1]), parts[3]}
		if sdv.EntryNotSent(entry) {
			notSent[k] = true
		}
		if sdv.StrictlyVerified(entry.VerStatus) {
			verifiedForms[k] = true
		}
	}

	// Forms with any data. Forms with none are future visits and produce no
	// gaps.
	formsWithData := make(map[formKey]bool)
	for _, r := range rows {
		if r.HasValue {
			formsWithData[lowerForm(r)] = true
		}
	}

	// Core-lab echo data marks the site sister form as started.
	for _, r := range rows {
		if !r.HasValue || !containsFold(r.Form, "core lab") {
			continue
		}
		name := strings.TrimSpace(r.Form)
		site, ok := echoCoreToSite[name]
		if !ok && strings.Contains(name, "Echocardiography") {
			normalized := strings.ReplaceAll(name, " - Core lab", "")
			normalized = strings.TrimSpace(strings.ReplaceAll(normalized, " – Core lab", ""))
			if normalized != name {
				site = normalized
				ok = true
			}
		}
		if ok {
			formsWithData[formKey{strings.ToLower(r.Patient), strings.ToLower(site), strings.ToLower(r.Visit)}] = true
		}
	}

	// ECG forms where the rhythm reading is present: their abnormality
	// checkboxes become pending instead of gaps.
	ecgWithRhythm := make(map[formKey]bool)
	for _, r := range rows {
		if r.HasValue && containsFold(r.Form, "ECG") && egRhythmRe.MatchString(r.VarName) {
			ecgWithRhythm[lowerForm(r)] = true
		}
	}

	// Every filled field, keyed down to the table row, for companion-field
	// rules (partial date, PESTAT, TIMUNC).
	fieldsWithValue := make(map[fieldKey]bool)
	for _, r := range rows {
		if r.HasValue {
			fieldsWithValue[fieldKey{strings.ToLower(r.Patient), strings.ToLower(r.Form), strings.ToLower(r.Visit), r.TableRow, strings.ToLower(r.VarName)}] = true
		}
	}

	// Forms with non-LBSTAT data (lab result present ⇒ the not-done flag is
	// legitimately empty) and echo forms with non-FASTAT data.
	formsWithLabResults := make(map[formKey]bool)
	echoFormsWithResults := make(map[formKey]bool)
	for _, r := range rows {
		if !r.HasValue {
			continue
		}
		if !containsFold(r.VarName, "LBSTAT") {
			formsWithLabResults[lowerForm(r)] = true
		}
		if containsFold(r.Form, "Echocardiography") && !containsFold(r.VarName, "FASTAT") {
			echoFormsWithResults[lowerForm(r)] = true
		}
	}

	// Checkbox groups on the AE form: once any option in the group is
	// ticked the rest are implied unchecked.
	aeacnWithData := make(map[rowKey]bool)
	aesWithData := make(map[rowKey]bool)
	for _, r := range rows {
		if !r.HasValue {
			continue
		}
		if strings.HasPrefix(r.VarName, "LOGS_AEACN_") {
			aeacnWithData[lowerRow(r)] = true
		}
		if containsFold(r.VarName, "LOGS_AES") {
			aesWithData[lowerRow(r)] = true
		}
	}

	// Forms with a result value: an empty date next to a result is
	// secondary.
	formsWithOrres := make(map[formKey]bool)
	pgaWithData := make(map[formKey]bool)
	aeWithEndDate := make(map[formKey]bool)
	aeWithData := make(map[formKey]bool)
	cmWithEndDate := make(map[formKey]bool)
	mhWithEndDate := make(map[formKey]bool)
	for _, r := range rows {
		if !r.HasValue {
			continue
		}
		fk := lowerForm(r)
		if orresRe.MatchString(r.VarName) {
			formsWithOrres[fk] = true
		}
		if containsFold(r.Form, "Physician Global Assessment") {
			pgaWithData[fk] = true
		}
		if containsFold(r.Form, "Adverse Event") {
			aeWithData[fk] = true
			if aeEndDateRe.MatchString(r.VarName) {
				aeWithEndDate[fk] = true
			}
		}
		if containsFold(r.Form, "Concomitant Medications") && cmEndDateRe.MatchString(r.VarName) {
			cmWithEndDate[fk] = true
		}
		if containsFold(r.Form, "Medical History") && mhEndDateRe.MatchString(r.VarName) {
			mhWithEndDate[fk] = true
		}
	}

	// Fields whose label marks them as "not done"/"not recorded" flags.
	notDoneVars := make(map[string]bool)
	if c.labels != nil {
		c.labels.Each(func(code, label string) {
			l := strings.ToLower(label)
			if strings.Contains(l, "not done") || strings.Contains(l, "not recorded") {
				notDoneVars[strings.ToLower(code)] = true
			}
		})
	}

	// Conditional skip rules: an answered trigger field suppresses its
	// dependent fields on the same form.
	formFilled := make(map[formKey]map[string]string)
	for _, r := range rows {
		if !r.HasValue {
			continue
		}
		fk := lowerForm(r)
		if formFilled[fk] == nil {
			formFilled[fk] = make(map[string]string)
		}
		formFilled[fk][strings.ToUpper(r.VarName)] = r.Value
	}
	skipTargets := make(map[formKey][]string)
	for fk, filled := range formFilled {
		names := make([]string, 0, len(filled))
		for name := range filled {
			names = append(names, name)
		}
		sort.Strings(names)
		skipTargets[fk] = crf.SkippedTargets(func(fragment string) string {
			fragment = strings.ToUpper(fragment)
			for _, name := range names {
				if strings.Contains(name, fragment) {
					return filled[name]
				}
			}
			return ""
		})
	}

	details := make([]Detail, 0, len(rows))
	for _, r := range rows {
		fk := lowerForm(r)
		rk := lowerRow(r)
		varLower := strings.ToLower(r.VarName)

		isNS := notSent[rk]
		formVerified := verifiedForms[rk]
		formHasData := formsWithData[fk]
		isECGCheckbox := ecgWithRhythm[fk] && ecgCheckboxRe.MatchString(r.VarName)

		excluded := c.isExcludedGap(r, fk, rk, varLower, notDoneVars, skipTargets[fk],
			formsWithLabResults, echoFormsWithResults, fieldsWithValue,
			aeacnWithData, aesWithData, formsWithOrres, pgaWithData, aeWithEndDate,
			aeWithData, cmWithEndDate, mhWithEndDate, formHasData)

		condVer := r.Code == 2 || r.Code == 4
		condPending := r.Code == 1 || r.Code == 3 ||
			(r.Code == 0 && r.HasValue && !r.Hidden) ||
			(isECGCheckbox && !r.HasValue) ||
			(excluded && !r.HasValue && !r.Hidden && !formVerified)
		condGap := !r.HasValue && !r.Hidden && !formVerified && !isECGCheckbox &&
			formHasData && !excluded

		var metric string
		switch {
		case isNS:
			metric = MetricNotSent
		case condVer:
			metric = MetricVerified
		case condPending:
			metric = MetricPending
		case condGap:
			metric = MetricGap
		default:
			continue
		}

		details = append(details, Detail{
			Patient:  r.Patient,
			Site:     r.Site,
			Visit:    r.Visit,
			Form:     r.Form,
			Field:    c.fieldLabel(r.VarName),
			FieldID:  r.VarName,
			Value:    r.Value,
			TableRow: r.TableRow,
			Metric:   metric,
		})
	}
	c.log.Debug().Int("rows", len(rows)).Int("classified", len(details)).Msg("classification pass done")
	return details
}

// isExcludedGap is the union of the suppression rules: empty fields matching
// any of them are legitimately blank and reclassify as pending.
func (c *Classifier) isExcludedGap(
	r row, fk formKey, rk rowKey, varLower string,
	notDoneVars map[string]bool, skipped []string,
	formsWithLabResults, echoFormsWithResults map[formKey]bool,
	fieldsWithValue map[fieldKey]bool,
	aeacnWithData, aesWithData map[rowKey]bool,
	formsWithOrres, pgaWithData, aeWithEndDate, aeWithData, cmWithEndDate, mhWithEndDate map[formKey]bool,
	formHasData bool,
) bool {
	isEcho := containsFold(r.Form, "Echocardiography")

	// Not-done/not-recorded flags identified by label.
	if notDoneVars[varLower] {
		return true
	}
	// Conditional skips triggered by answered fields on the same form.
	for _, fragment := range skipped {
		if containsFold(r.VarName, fragment) {
			return true
		}
	}
	// Lab not-done flag with results on the form.
	if containsFold(r.VarName, "LBSTAT") && formsWithLabResults[fk] {
		return true
	}
	// Echo not-done flag with results on the form.
	if containsFold(r.VarName, "FASTAT") && echoFormsWithResults[fk] {
		return true
	}
	// Core-lab echo measurement fields that are not the _SP sponsor set.
	if isEcho && containsFold(r.Form, "Core") &&
		containsFold(r.VarName, "FAORRES") && !strings.HasSuffix(r.VarName, "_SP") {
		return true
	}
	// Echo "reason not performed" when the assessment clearly ran.
	if isEcho && reasonRe.MatchString(r.VarName) && echoFormsWithResults[fk] {
		return true
	}
	// Optional per-row comments on test parameter tables.
	if containsFold(r.VarName, "TestParamsRowComments") {
		return true
	}
	// Pre-procedure checklist comments on a filled checklist.
	if containsFold(r.VarName, "PRCOMM") && formHasData {
		return true
	}
	// "Date partially known" checkbox when the full date is recorded.
	if containsFold(r.VarName, "PARTIAL") {
		base := partialSuffixRe.ReplaceAllString(partialCheckRe.ReplaceAllString(r.VarName, ""), "")
		if fieldsWithValue[fieldKey{rk.patient, rk.form, rk.visit, rk.tableRow, strings.ToLower(base)}] {
			return true
		}
	}
	// General trailing comment fields on a started form.
	if strings.HasSuffix(varLower, "comm") && formHasData {
		return true
	}
	// "Time unknown" checkbox when the time field is filled.
	if timuncRe.MatchString(r.VarName) {
		base := timuncRe.ReplaceAllString(r.VarName, "TIM")
		if fieldsWithValue[fieldKey{rk.patient, rk.form, rk.visit, rk.tableRow, strings.ToLower(base)}] {
			return true
		}
	}
	// Physical-exam status flag when its result field is filled. The status
	// variables carry a double underscore the result variables lack.
	if pestatRe.MatchString(r.VarName) {
		base := strings.ReplaceAll(pestatRe.ReplaceAllString(r.VarName, "PEORRES"), "__", "_")
		if fieldsWithValue[fieldKey{rk.patient, rk.form, rk.visit, rk.tableRow, strings.ToLower(base)}] {
			return true
		}
	}
	// AE action-taken and seriousness checkbox groups with any box ticked.
	if strings.HasPrefix(r.VarName, "LOGS_AEACN_") && aeacnWithData[rk] {
		return true
	}
	if containsFold(r.VarName, "LOGS_AES") && aesWithData[rk] {
		return true
	}
	// Generic status flags: the result field is the gap, not its status.
	if statRe.MatchString(r.VarName) {
		return true
	}
	// Lab metadata (ranges, units, reasons, references, comments).
	if labMetaRe.MatchString(r.VarName) {
		return true
	}
	// Empty date beside a recorded result.
	if dateFieldRe.MatchString(r.VarName) && !r.HasValue && formsWithOrres[fk] {
		return true
	}
	// PGA comments on a filled assessment.
	if containsFold(r.Form, "Physician Global Assessment") &&
		pgaCommentRe.MatchString(r.VarName) && !r.HasValue && pgaWithData[fk] {
		return true
	}
	// Ongoing flags are implied by a recorded end date.
	if containsFold(r.Form, "Adverse Event") {
		if aeOngoingRe.MatchString(r.VarName) && !r.HasValue && aeWithEndDate[fk] {
			return true
		}
		if saeCommentRe.MatchString(r.VarName) && !r.HasValue && aeWithData[fk] {
			return true
		}
	}
	if containsFold(r.Form, "Concomitant Medications") &&
		cmOngoingRe.MatchString(r.VarName) && !r.HasValue && cmWithEndDate[fk] {
		return true
	}
	if containsFold(r.Form, "Medical History") &&
		mhOngoingRe.MatchString(r.VarName) && !r.HasValue && mhWithEndDate[fk] {
		return true
	}
	return false
}

// fieldLabel maps a variable name to its cleaned display label.
func (c *Classifier) fieldLabel(varName string) string {
	if c.labels == nil {
		return varName
	}
	return crf.CleanLabel(c.labels.Get(varName))
}
