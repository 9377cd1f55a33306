package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/ae"
	"github.com/fontanka/EDC-check-sub001/internal/edc"
)

var (
	aePatient        string
	aeSAEOnly        bool
	aeDeviceRelated  bool
	aeExcludePreProc bool
	aeOnsetCutoff    string
	aeReportCutoff   string

	aeSummaryExclude     []string
	aeSummaryNoSF        bool
	aeSummaryNoPreProc   bool
)

var aeCmd = &cobra.Command{
	Use:   "ae",
	Short: "List and summarize adverse events",
}

var aeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deduplicated adverse event records",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newAEManager()
		if err != nil {
			return err
		}
		f := ae.Filters{
			SAEOnly:           aeSAEOnly,
			DeviceRelatedOnly: aeDeviceRelated,
			ExcludePreProc:    aeExcludePreProc,
		}
		if f.OnsetCutoff, err = parseCutoffFlag(aeOnsetCutoff, "onset-cutoff"); err != nil {
			return err
		}
		if f.ReportCutoff, err = parseCutoffFlag(aeReportCutoff, "report-cutoff"); err != nil {
			return err
		}

		var recs []ae.Record
		if aePatient != "" {
			recs = m.PatientRecords(aePatient, f)
		} else {
			recs = m.AllRecords(f)
		}
		if len(recs) == 0 {
			fmt.Println("No adverse events match.")
			return nil
		}
		for _, r := range recs {
			sae := " "
			if r.SAE == "Yes" {
				sae = "S"
			}
			fmt.Printf("%-12s #%-4s [%s] %-40s %-12s -> %-12s %s\n",
				r.Patient, r.Number, sae, r.Term, r.OnsetDate, r.ResolutionDate, r.Outcome)
		}
		fmt.Printf("%d records\n", len(recs))
		return nil
	},
}

var aeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show dataset-level adverse event statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newAEManager()
		if err != nil {
			return err
		}
		s := m.Summarize(ae.SummaryOptions{
			ExcludedPatients:      excludedPatientSet(aeSummaryExclude),
			ExcludePreProc:        aeSummaryNoPreProc,
			ExcludeScreenFailures: aeSummaryNoSF,
		})

		fmt.Printf("Adverse events: %d (%d serious, %d fatal, %d ongoing) across %d patients\n",
			s.TotalAEs, s.TotalSAEs, s.FatalCases, s.OngoingAEs, s.PatientsWithAEs)

		if len(s.OutcomeDist) > 0 {
			fmt.Println("\nOutcomes:")
			outcomes := make([]string, 0, len(s.OutcomeDist))
			for o := range s.OutcomeDist {
				outcomes = append(outcomes, o)
			}
			sort.Strings(outcomes)
			for _, o := range outcomes {
				fmt.Printf("  %-24s %d\n", o, s.OutcomeDist[o])
			}
		}

		if len(s.TopTerms) > 0 {
			fmt.Println("\nMost frequent terms:")
			for _, t := range s.TopTerms {
				fmt.Printf("  %-40s %d\n", t.Term, t.Count)
			}
		}

		fmt.Println("\nSeriousness criteria:")
		for _, k := range []string{"Hospitalization", "Life-threatening", "Death", "Disability", "Other Med/Surg"} {
			fmt.Printf("  %-18s %d\n", k, s.SAECriteria[k])
		}

		fmt.Println("\nRelatedness:")
		for _, k := range []string{"Device", "Delivery System", "Handle", "Procedure"} {
			c := s.Relatedness[k]
			fmt.Printf("  %-16s related=%d probably=%d possibly=%d not=%d unknown=%d\n",
				k, c.Related, c.Probably, c.Possibly, c.NotRelated, c.Unknown)
		}

		if len(s.PerPatient) > 0 {
			fmt.Println("\nPer patient:")
			for _, line := range s.PerPatient {
				fmt.Println("  " + line)
			}
		}

		if len(s.DeathDetails) > 0 {
			fmt.Println("\nMortality:")
			for _, d := range s.DeathDetails {
				fmt.Printf("  %-12s %-12s %-24s %s\n", d.Patient, d.DeathDate, d.Classification, d.Cause)
			}
		}
		return nil
	},
}

func newAEManager() (*ae.Manager, error) {
	snap, err := loadSnapshot()
	if err != nil {
		return nil, err
	}
	if snap.AE == nil {
		return nil, fmt.Errorf("snapshot %s has no adverse event sheet", snap.Dir)
	}
	return ae.NewManager(snap.Main, snap.AE, logger), nil
}

func parseCutoffFlag(val, name string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	t, ok := edc.ParseDate(val)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date for --%s: %s", name, val)
	}
	return t, nil
}

func init() {
	aeListCmd.Flags().StringVar(&aePatient, "patient", "", "limit to one patient")
	aeListCmd.Flags().BoolVar(&aeSAEOnly, "sae-only", false, "serious events only")
	aeListCmd.Flags().BoolVar(&aeDeviceRelated, "device-related", false, "events with any device or procedure relationship")
	aeListCmd.Flags().BoolVar(&aeExcludePreProc, "exclude-pre-proc", false, "drop events with onset before the procedure")
	aeListCmd.Flags().StringVar(&aeOnsetCutoff, "onset-cutoff", "", "keep events with onset on or after this date")
	aeListCmd.Flags().StringVar(&aeReportCutoff, "report-cutoff", "", "keep events reported on or after this date")

	aeSummaryCmd.Flags().StringSliceVar(&aeSummaryExclude, "exclude", nil, "patients to exclude (additive to config)")
	aeSummaryCmd.Flags().BoolVar(&aeSummaryNoSF, "exclude-screen-failures", false, "drop screen failure patients")
	aeSummaryCmd.Flags().BoolVar(&aeSummaryNoPreProc, "exclude-pre-proc", false, "drop events with onset before the procedure")

	aeCmd.AddCommand(aeListCmd)
	aeCmd.AddCommand(aeSummaryCmd)
	rootCmd.AddCommand(aeCmd)
}
