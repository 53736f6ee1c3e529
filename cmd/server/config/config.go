// Package config provides configuration parsing for the prediction server.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct covers:
//   - Listen addresses (HTTP, gRPC health)
//   - Logging configuration (level, format, optional rotated file)
//   - Artifact storage (file, memory or redis backend)
//   - Training parameters used when no model is stored yet
//   - TLS configuration (cert, key, optional CA for client verification)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/tls"
	"github.com/HatiCode/sepal/pkg/training"
)

// Config holds all server configuration.
type Config struct {
	Listen          string
	GRPCListen      string
	ShutdownTimeout time.Duration

	LogFormat string
	LogLevel  string
	LogFile   string

	Storage       string
	ArtifactDir   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	TrainingConfig string

	TLS tls.Config
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":5000"), "HTTP listen address")
	flag.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50051"), "gRPC health listen address (empty disables)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFile, "log-file", getEnv("LOG_FILE", ""), "Log file with size-based rotation (default: stderr)")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "file"), "Artifact storage backend: file, memory or redis")
	flag.StringVar(&cfg.ArtifactDir, "artifact-dir", getEnv("ARTIFACT_DIR", "."), "Directory of the model and metadata files")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "Redis artifact TTL (0 keeps artifacts until retrained)")

	flag.StringVar(&cfg.TrainingConfig, "training-config", getEnv("TRAINING_CONFIG", ""), "YAML training parameters used when no model is stored")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP and gRPC servers")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be > 0, got %v", c.ShutdownTimeout)
	}
	switch c.Storage {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("invalid storage %q (must be file, memory, or redis)", c.Storage)
	}
	if c.Storage == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis address is required when storage=redis")
	}
	return c.TLS.Validate()
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

// Training returns the parameters used to train a model on startup when
// none is stored.
func (c *Config) Training() (training.Config, error) {
	if c.TrainingConfig == "" {
		return training.DefaultConfig(), nil
	}
	return training.LoadConfigFile(c.TrainingConfig)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
