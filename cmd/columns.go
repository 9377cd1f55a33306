package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fontanka/EDC-check-sub001/internal/crf"
)

var (
	columnsVisit string
	columnsForm  string
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Map the export's columns onto the CRF structure",
	Long: `Columns classifies every column of the main sheet into its visit,
assessment category, and form, and lists the forms with their column
counts. With --form it lists that form's columns and display labels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		labels := snapshotLabels(snap)

		type groupKey struct{ visit, category, form string }
		counts := make(map[groupKey]int)
		var formCols []string
		for _, col := range snap.Main.Header {
			visit, category, form := crf.Classify(col)
			if columnsVisit != "" && !strings.EqualFold(visit, columnsVisit) {
				continue
			}
			if columnsForm != "" {
				if strings.EqualFold(form, columnsForm) {
					formCols = append(formCols, col)
				}
				continue
			}
			counts[groupKey{visit, category, form}]++
		}

		if columnsForm != "" {
			if len(formCols) == 0 {
				return fmt.Errorf("no columns classify into form %q", columnsForm)
			}
			for _, col := range formCols {
				fmt.Printf("%-40s %s\n", col, crf.CleanLabel(labels.Get(col)))
			}
			fmt.Printf("%d column(s)\n", len(formCols))
			return nil
		}

		keys := make([]groupKey, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if a.visit != b.visit {
				return a.visit < b.visit
			}
			if a.category != b.category {
				return a.category < b.category
			}
			return a.form < b.form
		})
		for _, k := range keys {
			fmt.Printf("%-28s %-24s %-56s %d column(s)\n", k.visit, k.category, k.form, counts[k])
		}
		return nil
	},
}

func init() {
	columnsCmd.Flags().StringVar(&columnsVisit, "visit", "", "limit to one visit")
	columnsCmd.Flags().StringVar(&columnsForm, "form", "", "list the columns of one form with labels")
	rootCmd.AddCommand(columnsCmd)
}
