// Package crf maps raw EDC export column codes onto the study's CRF
// structure: visits, assessment categories, forms, and display labels.
package crf

import (
	"regexp"
	"strings"
)

// VisitPrefix pairs a column-name prefix with its visit display name.
// Order matters: prefixes are tried first to last, so longer prefixes
// (FU1M before an imagined FU1) must come before shorter ones.
type VisitPrefix struct {
	Prefix string
	Name   string
}

// VisitPrefixes is the study's visit table in protocol order.
var VisitPrefixes = []VisitPrefix{
	{"SBV", "Baseline"},
	{"TV", "Treatment"},
	{"DV", "Discharge Visit"},
	{"FU1M", "30-Day Follow Up"},
	{"FU3M", "3-Month Follow Up (Remote)"},
	{"FU6M", "6-Month Follow Up"},
	{"FU1Y", "1-Year Follow Up"},
	{"FU2Y", "2-Year Follow Up"},
	{"FU3Y", "3-Year Follow Up (Remote)"},
	{"FU4Y", "4-Year Follow Up"},
	{"FU5Y", "5-Year Follow Up (Remote)"},
	{"UV", "Unscheduled"},
	{"LOGS", "Logs"},
}

// VisitName resolves a column code's visit by prefix; codes with no known
// prefix belong to Unscheduled.
func VisitName(col string) string {
	for _, v := range VisitPrefixes {
		if strings.HasPrefix(col, v.Prefix+"_") || col == v.Prefix {
			return v.Name
		}
	}
	return "Unscheduled"
}

// AssessmentRule classifies a column code into (category, form). Rules are
// evaluated in order and the first match wins, so specific patterns
// (procedure timing, core-lab echo) must precede the generic ones they would
// otherwise shadow.
type AssessmentRule struct {
	Pattern  *regexp.Regexp
	Category string
	Form     string
}

func rule(pat, category, form string) AssessmentRule {
	return AssessmentRule{Pattern: regexp.MustCompile(pat), Category: category, Form: form}
}

// AssessmentRules is the ordered classification table for this study's CRF.
var AssessmentRules = []AssessmentRule{
	// Additional tests use a dedicated prefix and must be caught before the
	// generic lab and procedure patterns.
	rule(`LOGS_LB_PR_OTH_PRORRES`, "Procedures", "Additional Laboratory / Diagnostic Tests"),
	rule(`LOGS_LB_PR_OTH_ORRES`, "Laboratory", "Additional Laboratory / Diagnostic Tests"),
	rule(`LOGS_LB_PR_OTH_LBORRES`, "Laboratory", "Additional Laboratory / Diagnostic Tests"),
	rule(`LOGS_AE_LBREF`, "Laboratory", "Additional Laboratory / Diagnostic Tests"),
	rule(`LOGS_AE_PRREF`, "Procedures", "Additional Laboratory / Diagnostic Tests"),

	// Admin
	rule(`ELIG`, "Admin", "Eligibility Confirmation and Planned Procedure Date"),
	rule(`IE`, "Admin", "Inclusion/Exclusion Criteria"),
	rule(`ICF`, "Admin", "ICF procedure"),
	rule(`_SV_`, "Admin", "Visit Date"),

	// Procedure timing precedes ECG/CVC.
	rule(`_PR_TIM_`, "Procedures", "Procedure form"),
	rule(`CVC.*PRE|CVC.*POST`, "Procedures", "Cardiac and Venous Catheterization – Pre- and Post-procedure"),
	rule(`CVC`, "Procedures", "Cardiac and Venous Catheterization"),
	rule(`TV_.*ECG.*POST`, "Procedures", "Standard 12-lead ECG-Pre and Post procedure"),
	rule(`TV_.*ECG.*PRE`, "Procedures", "Standard 12-lead ECG-Pre and Post procedure"),
	rule(`ECG`, "Procedures", "Standard 12-lead ECG"),
	rule(`TRRI`, "Procedures", "Tricuspid Re-intervention"),
	rule(`CVPHM`, "Procedures", "CVP Hemodynamic Measurement"),
	rule(`_PR_`, "Procedures", "Procedure form"),

	// Core-lab echo (the _SP/_CORE suffix) before site echo.
	rule(`TV_.*ECHO.*1DPP.*(_SP|_CORE)`, "Imaging (Core Lab)", "Echocardiography – 1 day prior the procedure - Core lab"),
	rule(`TV_.*ECHO.*1D.*(_SP|_CORE)`, "Imaging (Core Lab)", "Echocardiography – 1-day post procedure - Core lab"),
	rule(`TV_.*ECHO.*(PRE|POST).*(_SP|_CORE)`, "Imaging (Core Lab)", "Echocardiography – Pre and Post procedure - Core lab"),
	rule(`TV_.*ECHO.*(_SP|_CORE)`, "Imaging (Core Lab)", "Echocardiography – Core lab"),
	rule(`ECHO.*(_SP|_CORE)`, "Imaging (Core Lab)", "Echocardiography – Core lab"),
	rule(`ECHO.*SPONSOR`, "Imaging (Core Lab)", "Echocardiography – Core lab"),

	// Site imaging
	rule(`TV_.*ECHO.*1DPP`, "Imaging (Site)", "Echocardiography – 1 day prior the procedure"),
	rule(`TV_.*ECHO.*1D`, "Imaging (Site)", "Echocardiography – 1-day post procedure"),
	rule(`TV_.*ECHO.*(PRE|POST)`, "Imaging (Site)", "Echocardiography – Pre and Post procedure"),
	rule(`TV_.*ECHO`, "Imaging (Site)", "Echocardiography"),
	rule(`ECHO`, "Imaging (Site)", "Echocardiography"),

	rule(`_AG_`, "Imaging (Site)", "Angiography – Pre and Post procedure"),
	rule(`CMR`, "Imaging", "CMR Imaging"),
	rule(`CCTA`, "Imaging", "Cardiac CT Angiogram"),

	// Clinical assessments
	rule(`HE_GRADE|ENCEPH|LFP_HE|RS_EG`, "Clinical Assessments", "Encephalopathy Grade"),
	rule(`_VS`, "Clinical Assessments", "Vital signs"),
	rule(`_PE`, "Clinical Assessments", "Physical Examination"),
	rule(`6MWT`, "Clinical Assessments", "Exercise Tolerance (6MWT)"),
	rule(`CFSS`, "Clinical Assessments", "Clinical Frailty Scale"),
	rule(`_FS_`, "Clinical Assessments", "Functional Status (NYHA)"),
	rule(`MNA`, "Clinical Assessments", "Mini Nutrition Assessment (MNA)"),
	rule(`KCCQ`, "Questionnaires", "Kansas City Cardiomyopathy Questionnaire (KCCQ)"),
	rule(`RS_PGA`, "Clinical Assessments", "Physician Global Assessment"),

	// Laboratory
	rule(`LB_CBC`, "Laboratory", "CBC and platelets count"),
	rule(`LB_BMP`, "Laboratory", "Basic metabolic panel and eGFR CKD-EPI (2021)"),
	rule(`LB_LFP`, "Laboratory", "Liver function panel"),
	rule(`LB_COA`, "Laboratory", "Coagulation study"),
	rule(`LB_ENZ`, "Laboratory", "Blood enzymes"),
	rule(`LB_PREG`, "Laboratory", "Pregnancy test"),
	rule(`LB_BM`, "Laboratory", "Biomarkers"),
	rule(`LB_ACT`, "Laboratory", "ACT lab results"),
	rule(`LB_ADD`, "Laboratory", "Additional Laboratory / Diagnostic Tests"),

	// History
	rule(`_DM`, "History", "Demographics"),
	rule(`_MH`, "History", "Medical History"),
	rule(`_CVH`, "History", "Cardiovascular History"),
	rule(`_HFH`, "History", "Heart Failure History"),
	rule(`HMEH`, "History", "Hospitalization and Medical Events History"),

	// Risk scores
	rule(`TRS`, "Risk Scores", "Trio Score for Tricuspid Regurgitation Risk"),
	rule(`STSS`, "Risk Scores", "Society of Thoracic Surgeons Score"),

	// Safety
	rule(`_DDF`, "Safety", "Device Deficiency Form"),
	rule(`_AE|AEACN`, "Safety", "Adverse Event"),
	rule(`_CM`, "Safety", "Concomitant Medications"),
	rule(`PTHME`, "Safety", "Post-Treatment Hospitalizations/Medical Events"),
	rule(`DTF|DEATH|DTH`, "Safety", "Death"),
}

// Classify resolves a column code into its visit, assessment category, and
// form name. Total: every code classifies, unmatched ones fall through to
// ("Other", "General").
func Classify(col string) (visit, category, form string) {
	visit = VisitName(col)
	for _, r := range AssessmentRules {
		if r.Pattern.MatchString(col) {
			return visit, r.Category, r.Form
		}
	}
	return visit, "Other", "General"
}

// ScheduleEntry pairs a visit-date column with its display name.
type ScheduleEntry struct {
	DateCol string
	Name    string
}

// VisitSchedule lists the per-visit date columns in chronological order, used
// for cross-form timing checks.
var VisitSchedule = []ScheduleEntry{
	{"SBV_SV_SVSTDTC", "Baseline/Screening"},
	{"TV_PR_SVDTC", "Treatment"},
	{"DV_SV_SVSTDTC", "Discharge Visit"},
	{"FU1M_SV_SVSTDTC", "30-Day FU"},
	{"FU3M_SV_SVSTDTC", "3-Month FU"},
	{"FU6M_SV_SVSTDTC", "6-Month FU"},
	{"FU1Y_SV_SVSTDTC", "1-Year FU"},
	{"FU2Y_SV_SVSTDTC", "2-Year FU"},
	{"FU3Y_SV_SVSTDTC", "3-Year FU"},
	{"FU4Y_SV_SVSTDTC", "4-Year FU"},
	{"FU5Y_SV_SVSTDTC", "5-Year FU"},
}
