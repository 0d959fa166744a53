package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Decision rules for portfolio formation.
const (
	RuleMedian   = "median"
	RuleQuartile = "quartile"
	RuleOctile   = "octile"
)

// Config holds the strategy and training hyperparameters. The zero value is
// not usable; start from DefaultConfig and override from YAML.
type Config struct {
	// Network
	HiddenShape  int     `yaml:"hidden_shape"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	ValSize      float64 `yaml:"val_size"` // fraction of rows held out for validation

	// Training telemetry
	ValCheckInterval int  `yaml:"val_check_interval"` // epochs between validation passes
	LogFrequency     int  `yaml:"log_frequency"`      // steps between metrics rows
	LogLoss          bool `yaml:"log_loss"`

	// Strategy
	DecisionRule        string `yaml:"decision_rule"`
	RequiredNumberDates int    `yaml:"required_number_dates"`
	Seed                int64  `yaml:"seed"`

	// Paths
	CheckpointDir  string `yaml:"checkpoint_dir"`
	MetricsDir     string `yaml:"metrics_dir"`
	PretrainedPath string `yaml:"pretrained_path"` // when set, load weights instead of training
}

// DefaultConfig returns the stock hyperparameters.
func DefaultConfig() Config {
	return Config{
		HiddenShape:  10,
		LearningRate: 0.01,
		Momentum:     0.9,
		Epochs:       50,
		BatchSize:    64,
		ValSize:      0.2,

		ValCheckInterval: 1,
		LogFrequency:     10,
		LogLoss:          true,

		DecisionRule:        RuleQuartile,
		RequiredNumberDates: 30,
		Seed:                42,

		CheckpointDir: "pretrained_models",
		MetricsDir:    "nn_logs",
	}
}

// LoadConfig reads YAML overrides on top of the defaults. A missing file is
// not an error: it returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// SaveConfig writes the config as YAML.
func SaveConfig(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate rejects configurations the trainer or strategy cannot run with.
func (c Config) Validate() error {
	switch c.DecisionRule {
	case RuleMedian, RuleQuartile, RuleOctile:
	default:
		return fmt.Errorf("decision rule %q is not one of median, quartile, octile", c.DecisionRule)
	}
	if c.HiddenShape <= 0 {
		return fmt.Errorf("hidden_shape must be positive, got %d", c.HiddenShape)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ValSize < 0 || c.ValSize >= 1 {
		return fmt.Errorf("val_size must be in [0, 1), got %g", c.ValSize)
	}
	if c.ValCheckInterval <= 0 {
		return fmt.Errorf("val_check_interval must be positive, got %d", c.ValCheckInterval)
	}
	if c.LogLoss && c.LogFrequency <= 0 {
		return fmt.Errorf("log_frequency must be positive when log_loss is enabled, got %d", c.LogFrequency)
	}
	if c.RequiredNumberDates < 2 {
		return fmt.Errorf("required_number_dates must be at least 2, got %d", c.RequiredNumberDates)
	}
	return nil
}
