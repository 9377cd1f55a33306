package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/fontanka/EDC-check-sub001/internal/config"
)

var (
	// Global flags (wired later to config/viper)
	cfgFile string
	debug   bool
	// Data location flags (override config if set)
	flagDataDir  string
	flagSnapshot string
	flagTopN     int

	// Loaded configuration
	cfg *cfgpkg.Global

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "edc-check",
	Short: "EDC data quality checker: verification gaps, SDV status, and AE review",
	Long: `edc-check reads clinical study export snapshots and reports on data
quality: which fields are missing, pending monitoring, or source-data
verified, plus adverse event listings and cross-form consistency checks.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.edc-check/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding export snapshots (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "load a specific snapshot directory instead of the latest")
	rootCmd.PersistentFlags().IntVar(&flagTopN, "top-n", 0, "ranking size in reports (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		setupLogger()
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("top-n") && flagTopN > 0 {
		cfg.TopN = flagTopN
	}
	setupLogger()
}

func setupLogger() {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if cfg != nil && cfg.JSONLogs {
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		return
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
