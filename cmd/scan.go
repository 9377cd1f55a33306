package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/dashboard"
	"github.com/fontanka/EDC-check-sub001/internal/sdv"
)

var (
	scanPatient string
	scanExclude []string
	scanMetric  string
	scanLevel   string
	scanID      string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify every field and report verification gaps",
	Long: `Scan classifies each exported field as not sent (NS), verified (V),
pending (!), or a gap (GAP), rolls the counts up by study, site, patient,
and form, and ranks the worst offenders. Use --metric to list the detail
rows behind one count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modular, err := loadModular()
		if err != nil {
			return err
		}
		historyRows, err := loadHistoryRows()
		if err != nil {
			return err
		}
		history := sdv.NewHistoryIndex(historyRows, logger)

		snap, err := loadSnapshot()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: no project snapshot, field labels unavailable: %v\n", err)
		}

		classifier := dashboard.NewClassifier(modular, history, snapshotLabels(snap), logger)
		details := classifier.Classify(dashboard.Options{
			ExcludedPatients: excludedPatientSet(scanExclude),
			Patient:          scanPatient,
		})
		if len(details) == 0 {
			fmt.Println("No classifiable fields found.")
			return nil
		}

		if scanMetric != "" {
			return printDrilldown(classifier, details)
		}

		stats := dashboard.Aggregate(details)
		printSummary(stats, details)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPatient, "patient", "", "limit the scan to one patient")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "patients to exclude (additive to config)")
	scanCmd.Flags().StringVar(&scanMetric, "metric", "", "list detail rows for a metric (NS, V, !, GAP)")
	scanCmd.Flags().StringVar(&scanLevel, "level", dashboard.LevelStudy, "drilldown level (study, site, patient, form)")
	scanCmd.Flags().StringVar(&scanID, "id", "", "drilldown key (site number, patient, or patient|form)")
	rootCmd.AddCommand(scanCmd)
}

func printSummary(stats dashboard.Stats, details []dashboard.Detail) {
	fmt.Println("Study totals:")
	for _, m := range dashboard.Metrics {
		fmt.Printf("  %-4s %d\n", m, stats.Study[m])
	}

	sites := make([]string, 0, len(stats.Site))
	for s := range stats.Site {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	fmt.Println("\nBy site:")
	for _, s := range sites {
		c := stats.Site[s]
		fmt.Printf("  %-8s NS=%-5d V=%-5d !=%-5d GAP=%d\n",
			s, c[dashboard.MetricNotSent], c[dashboard.MetricVerified], c[dashboard.MetricPending], c[dashboard.MetricGap])
	}

	n := 10
	if cfg != nil && cfg.TopN > 0 {
		n = cfg.TopN
	}
	fmt.Printf("\nTop %d patients by gaps:\n", n)
	for _, e := range dashboard.TopCounts(details, dashboard.LevelPatient, dashboard.MetricGap, n) {
		fmt.Printf("  %-12s %d\n", e.Key, e.Count)
	}
	fmt.Printf("\nTop %d forms by gaps:\n", n)
	for _, e := range dashboard.TopCounts(details, dashboard.LevelForm, dashboard.MetricGap, n) {
		patient, form, _ := strings.Cut(e.Key, "|")
		fmt.Printf("  %-12s %-40s %d\n", patient, form, e.Count)
	}
}

func printDrilldown(c *dashboard.Classifier, details []dashboard.Detail) error {
	rows := c.Drilldown(details, scanLevel, scanID, scanMetric)
	if len(rows) == 0 {
		fmt.Println("No rows match.")
		return nil
	}
	for _, r := range rows {
		line := fmt.Sprintf("%-12s %-24s %-32s %s", r.Patient, r.Visit, r.Form, r.Field)
		if r.Value != "" {
			line += " = " + r.Value
		}
		if r.VerifiedBy != "" {
			line += fmt.Sprintf("  (verified by %s on %s)", r.VerifiedBy, r.Date)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d rows\n", len(rows))
	return nil
}
