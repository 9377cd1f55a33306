// Package config holds the persisted tool settings: where export snapshots
// live, which patients to exclude from statistics, and report defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// DataDir is scanned for export snapshot directories.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// ModularFile and HistoryFile point at the SDV exports: the per-field
	// control status sheet and the form status history sheet.
	ModularFile string `mapstructure:"modular_file" yaml:"modular_file"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
	// OutputDir receives generated reports.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// Patients dropped from every statistic (test subjects, withdrawals).
	ExcludedPatients      []string `mapstructure:"excluded_patients" yaml:"excluded_patients"`
	ExcludeScreenFailures bool     `mapstructure:"exclude_screen_failures" yaml:"exclude_screen_failures"`
	ExcludePreProcedure   bool     `mapstructure:"exclude_pre_procedure" yaml:"exclude_pre_procedure"`

	// TopN limits ranking output in scan reports.
	TopN int `mapstructure:"top_n" yaml:"top_n"`

	// JSONLogs switches the console log format to structured JSON.
	JSONLogs bool `mapstructure:"json_logs" yaml:"json_logs"`
}

const configDirName = ".edc-check"

// Save writes the given configuration to the cfgFile path. If cfgFile is
// empty, it writes to ~/.edc-check/config.yaml, creating the directory if
// necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, configDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDCCHECK")
	v.AutomaticEnv()

	v.SetDefault("data_dir", ".")
	v.SetDefault("modular_file", "")
	v.SetDefault("history_file", "")
	v.SetDefault("output_dir", "reports")
	v.SetDefault("excluded_patients", []string{})
	v.SetDefault("exclude_screen_failures", false)
	v.SetDefault("exclude_pre_procedure", false)
	v.SetDefault("top_n", 10)
	v.SetDefault("json_logs", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, configDirName)
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
