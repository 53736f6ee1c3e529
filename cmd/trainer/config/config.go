// Package config provides configuration parsing for the trainer.
//
// Training parameters start from the built-in defaults, are replaced by the
// YAML file given with -config (or TRAINING_CONFIG), and finally by any
// hyperparameter flag or environment variable set explicitly.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/training"
)

// Config holds all trainer configuration.
type Config struct {
	ConfigFile string

	// Hyperparameter overrides. Zero values (and a negative seed) mean
	// "keep the value from the defaults or the YAML file".
	NEstimators int
	MaxDepth    int
	TestRatio   float64
	Seed        int64

	LogFormat string
	LogLevel  string
	LogFile   string

	Storage       string
	ArtifactDir   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// ParseFlags parses command-line flags and environment variables into a Config.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ConfigFile, "config", getEnv("TRAINING_CONFIG", ""), "YAML file with training parameters")
	flag.IntVar(&cfg.NEstimators, "n-estimators", getEnvInt("N_ESTIMATORS", 0), "Number of trees (0 keeps the configured value)")
	flag.IntVar(&cfg.MaxDepth, "max-depth", getEnvInt("MAX_DEPTH", 0), "Maximum tree depth (0 keeps the configured value)")
	flag.Float64Var(&cfg.TestRatio, "test-ratio", getEnvFloat("TEST_RATIO", 0), "Held-out fraction (0 keeps the configured value)")
	flag.Int64Var(&cfg.Seed, "seed", getEnvInt64("SEED", -1), "Random seed (negative keeps the configured value)")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFile, "log-file", getEnv("LOG_FILE", ""), "Log file with size-based rotation (default: stderr)")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "file"), "Artifact storage backend: file or redis")
	flag.StringVar(&cfg.ArtifactDir, "artifact-dir", getEnv("ARTIFACT_DIR", "."), "Directory of the model and metadata files")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "Redis artifact TTL (0 keeps artifacts until retrained)")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the trainer settings. Only persistent backends are
// accepted: a model trained into process memory would be lost on exit.
func (c *Config) Validate() error {
	switch c.Storage {
	case "file":
		if c.ArtifactDir == "" {
			return errors.New("artifact directory is required for file storage")
		}
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("redis address is required for redis storage")
		}
	default:
		return fmt.Errorf("invalid storage %q (must be file or redis)", c.Storage)
	}
	return nil
}

// Training resolves the training parameters.
func (c *Config) Training() (training.Config, error) {
	tc := training.DefaultConfig()
	if c.ConfigFile != "" {
		var err error
		tc, err = training.LoadConfigFile(c.ConfigFile)
		if err != nil {
			return training.Config{}, err
		}
	}

	if c.NEstimators > 0 {
		tc.NEstimators = c.NEstimators
	}
	if c.MaxDepth > 0 {
		tc.MaxDepth = c.MaxDepth
	}
	if c.TestRatio > 0 {
		tc.TestRatio = c.TestRatio
	}
	if c.Seed >= 0 {
		tc.Seed = uint64(c.Seed)
	}

	if err := tc.Validate(); err != nil {
		return training.Config{}, err
	}
	return tc, nil
}

// StorageOptions returns the artifact store settings.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.Storage,
		Dir:           c.ArtifactDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisTTL:      c.RedisTTL,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
