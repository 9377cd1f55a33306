package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/sdv"
)

var (
	activityUser  string
	activityStart string
	activityEnd   string
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Report verification activity per monitor",
	Long: `Activity reads the form status history and reports, per monitor and
day, how many pages were verified at which site.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := loadHistoryRows()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("history_file is not configured (edc-check config set history_file <path>)")
		}
		history := sdv.NewHistoryIndex(rows, logger)

		var filter sdv.ActivityFilter
		filter.User = activityUser
		if filter.Start, err = parseCutoffFlag(activityStart, "start"); err != nil {
			return err
		}
		if filter.End, err = parseCutoffFlag(activityEnd, "end"); err != nil {
			return err
		}

		entries := history.ActivityReport(filter)
		if len(entries) == 0 {
			fmt.Println("No verification activity matches.")
			return nil
		}
		var total int
		for _, e := range entries {
			fmt.Printf("%-20s %s  site %-6s %-12s %-24s %d page(s)\n",
				e.User, e.Date, e.Site, e.Patient, e.Visit, e.PagesVerified)
			total += e.PagesVerified
		}
		fmt.Printf("%d page(s) verified in total\n", total)
		return nil
	},
}

func init() {
	activityCmd.Flags().StringVar(&activityUser, "user", "", "limit to one monitor")
	activityCmd.Flags().StringVar(&activityStart, "start", "", "first day to include")
	activityCmd.Flags().StringVar(&activityEnd, "end", "", "last day to include")
	rootCmd.AddCommand(activityCmd)
}
