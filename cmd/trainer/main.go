// Command trainer fits the random forest on the bundled iris dataset and
// writes the model and its metadata record to the artifact store.
//
// Usage:
//
//	trainer -artifact-dir=/var/lib/sepal
//	trainer -config=training.yaml -seed=7
//
// Environment variables:
//
//	TRAINING_CONFIG - YAML training parameters
//	N_ESTIMATORS    - Number of trees
//	MAX_DEPTH       - Maximum tree depth
//	TEST_RATIO      - Held-out fraction
//	SEED            - Random seed
//	STORAGE         - Artifact storage: file, redis (default: file)
//	ARTIFACT_DIR    - Directory of the artifact files (default: .)
//	REDIS_ADDR      - Redis address when STORAGE=redis
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
//	LOG_FILE        - Rotated log file (default: stderr)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HatiCode/sepal/cmd/trainer/config"
	"github.com/HatiCode/sepal/pkg/logging"
	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/training"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger, logCloser := logging.New(logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})
	slog.SetDefault(logger)

	err := run(cfg, logger)
	if err != nil {
		logger.Error("training failed", "error", err)
	}
	logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tc, err := cfg.Training()
	if err != nil {
		return err
	}

	store, closer, err := storage.New(cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sepal trainer", "version", version, "storage", cfg.Storage)

	if _, err := training.Run(ctx, store, tc, logger); err != nil {
		return err
	}

	if fs, ok := store.(*storage.FileStore); ok {
		logger.Info("artifacts written",
			"model", fs.ModelPath(),
			"metadata", fs.MetadataPath(),
		)
	}
	return nil
}
