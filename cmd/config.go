package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/fontanka/EDC-check-sub001/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set edc-check configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("data_dir: %s\n", cfg.DataDir)
		fmt.Printf("modular_file: %s\n", cfg.ModularFile)
		fmt.Printf("history_file: %s\n", cfg.HistoryFile)
		fmt.Printf("output_dir: %s\n", cfg.OutputDir)
		if len(cfg.ExcludedPatients) > 0 {
			fmt.Printf("excluded_patients: %s\n", strings.Join(cfg.ExcludedPatients, ", "))
		}
		fmt.Printf("exclude_screen_failures: %v\n", cfg.ExcludeScreenFailures)
		fmt.Printf("exclude_pre_procedure: %v\n", cfg.ExcludePreProcedure)
		fmt.Printf("top_n: %d\n", cfg.TopN)
		fmt.Printf("json_logs: %v\n", cfg.JSONLogs)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "data_dir":
			cfg.DataDir = val
		case "modular_file":
			cfg.ModularFile = val
		case "history_file":
			cfg.HistoryFile = val
		case "output_dir":
			cfg.OutputDir = val
		case "excluded_patients":
			cfg.ExcludedPatients = splitPatientList(val)
		case "exclude_screen_failures":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for exclude_screen_failures: %v", val)
			}
			cfg.ExcludeScreenFailures = b
		case "exclude_pre_procedure":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for exclude_pre_procedure: %v", val)
			}
			cfg.ExcludePreProcedure = b
		case "top_n":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for top_n: %v", val)
			}
			cfg.TopN = i
		case "json_logs":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for json_logs: %v", val)
			}
			cfg.JSONLogs = b
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

// splitPatientList parses a comma-separated patient list, dropping blanks.
func splitPatientList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
