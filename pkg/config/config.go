// Package config provides configuration loading and management for
// profilescore. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// Suffix selects the preprocessing variant of per-plate files
		Suffix string `yaml:"suffix"`

		// Sphere is the whitening granularity: "none", "plate" or "batch"
		Sphere string `yaml:"sphere"`

		// NSamples is the size of the resampled null distribution
		NSamples int `yaml:"nSamples"`

		// Seed initializes the sampling random source
		Seed int64 `yaml:"seed"`

		// How selects the percent-score comparison mode: "left",
		// "right" or "both"
		How string `yaml:"how"`
	} `yaml:"analysis"`

	// Output parameters
	Output struct {
		// ScoresFile is where the computed score table is written
		ScoresFile string `yaml:"scoresFile"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default analysis parameters
	cfg.Analysis.Suffix = "_normalized_feature_select_negcon.csv.gz"
	cfg.Analysis.Sphere = "none"
	cfg.Analysis.NSamples = 10000
	cfg.Analysis.Seed = 9000
	cfg.Analysis.How = "right"

	// Set default output parameters
	cfg.Output.ScoresFile = "scores.csv"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
