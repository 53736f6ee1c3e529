package training

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds the training hyperparameters.
type Config struct {
	NEstimators     int     `yaml:"n_estimators"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MaxFeatures     int     `yaml:"max_features"`
	TestRatio       float64 `yaml:"test_ratio"`
	Seed            uint64  `yaml:"seed"`
}

// DefaultConfig returns the reference setup: 100 trees grown to purity,
// sqrt(n_features) candidates per split, an 80/20 split and seed 42.
func DefaultConfig() Config {
	return Config{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MaxFeatures:     0,
		TestRatio:       0.2,
		Seed:            42,
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	if c.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be > 0, got %d", c.NEstimators)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative, got %d", c.MaxDepth)
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be >= 2, got %d", c.MinSamplesSplit)
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("max_features cannot be negative, got %d", c.MaxFeatures)
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("test_ratio must be in (0,1), got %v", c.TestRatio)
	}
	return nil
}

// LoadConfigFile reads hyperparameters from a YAML file. Keys missing from
// the file keep their DefaultConfig values; unknown keys are rejected.
//
// Example:
//
//	n_estimators: 200
//	max_depth: 8
//	test_ratio: 0.25
//	seed: 7
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read training config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse training config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("training config %s: %w", path, err)
	}
	return cfg, nil
}
