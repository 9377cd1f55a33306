package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/repeating"
)

var medsPatient string

var medsCmd = &cobra.Command{
	Use:   "meds",
	Short: "List a patient's concomitant medications",
	Long: `Meds reconstructs the medication log from the wide export, where each
patient's entries are flattened into pipe-delimited cells, and derives the
daily dose from the single dose and frequency.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if medsPatient == "" {
			return fmt.Errorf("--patient is required")
		}
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		row := -1
		for i := 0; i < snap.Main.NumRows(); i++ {
			if snap.Main.Cell(i, "Screening #") == medsPatient {
				row = i
				break
			}
		}
		if row < 0 {
			return fmt.Errorf("patient %s not found in snapshot", medsPatient)
		}

		meds := repeating.Medications(snap.Main, row)
		if len(meds) == 0 {
			fmt.Println("No medications recorded.")
			return nil
		}
		for _, m := range meds {
			line := fmt.Sprintf("#%-3d %-32s %s %s %s", m.Number, m.Name, m.Dose, m.Unit, m.Frequency)
			if m.DailyDose != "" {
				line += " (" + m.DailyDose + ")"
			}
			line += fmt.Sprintf("  %s -> %s", m.StartDate, m.EndDate)
			if m.Indication != "" {
				line += "  for " + m.Indication
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	medsCmd.Flags().StringVar(&medsPatient, "patient", "", "patient screening number")
	rootCmd.AddCommand(medsCmd)
}
