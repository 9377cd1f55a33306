package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check snapshot schema and cross-form consistency",
	Long: `Validate loads the latest snapshot, checks that the critical columns
exist, and runs the cross-form consistency checks: fatal adverse events
without a death form date, follow-up visits dated before the procedure,
and post-procedure events with onset before the procedure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot: %s\n", snap.Dir)
		if !snap.Cutoff.IsZero() {
			fmt.Printf("Data cutoff: %s\n", snap.Cutoff.Format("2006-01-02 15:04:05"))
		}

		for _, w := range snap.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
		}

		issues := loader.CrossFormIssues(snap)
		if len(issues) == 0 && len(snap.Warnings) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		for _, issue := range issues {
			fmt.Println("  " + issue)
		}
		fmt.Printf("%d consistency issue(s), %d schema warning(s)\n", len(issues), len(snap.Warnings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
