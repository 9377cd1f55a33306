package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/sdv"
)

var (
	statusPatient string
	statusField   string
	statusForm    string
	statusVisit   string
	statusRow     int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show source data verification progress",
	Long: `Status reads the per-field control status sheet and reports how many
fields are verified, awaiting re-verification, or still pending, for the
whole study or one patient. With --field it resolves the status of a
single field, form-level submission state included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := loadSDVIndex()
		if err != nil {
			return err
		}

		if statusField != "" {
			if statusPatient == "" {
				return fmt.Errorf("--field requires --patient")
			}
			s := index.FieldStatus(statusPatient, statusField, statusRow, statusForm, statusVisit)
			if s == sdv.StatusNone {
				return fmt.Errorf("field %s not found for patient %s", statusField, statusPatient)
			}
			fmt.Printf("%s %s: %s\n", statusPatient, statusField, s)
			return nil
		}

		if statusPatient != "" {
			s := index.Fields.PatientStats(statusPatient)
			if s.Total() == 0 {
				return fmt.Errorf("no fields found for patient %s", statusPatient)
			}
			printStats(statusPatient, s)
			return nil
		}

		patients := index.Fields.Patients()
		sort.Strings(patients)
		for _, p := range patients {
			printStats(p, index.Fields.PatientStats(p))
		}
		fmt.Println()
		printStats("TOTAL", index.Fields.TotalStats())
		return nil
	},
}

func printStats(label string, s sdv.Stats) {
	fmt.Printf("%-12s verified=%-6d pending=%-6d awaiting=%-6d hidden=%-6d total=%d\n",
		label, s.Verified, s.Pending, s.Awaiting, s.Hidden, s.Total())
}

func init() {
	statusCmd.Flags().StringVar(&statusPatient, "patient", "", "limit to one patient")
	statusCmd.Flags().StringVar(&statusField, "field", "", "resolve a single field's status")
	statusCmd.Flags().StringVar(&statusForm, "form", "", "form name for the form-level submission check")
	statusCmd.Flags().StringVar(&statusVisit, "visit", "", "visit name for the form-level submission check")
	statusCmd.Flags().IntVar(&statusRow, "row", 0, "table row for repeating-table fields")
	rootCmd.AddCommand(statusCmd)
}
