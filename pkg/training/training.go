// Package training fits the random forest on the bundled dataset and
// persists the resulting artifacts.
//
// The routine is deterministic: the dataset is fixed and both the split and
// the forest are driven by Config.Seed, so repeated runs produce the same
// model and the same accuracy.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/sepal/pkg/dataset"
	"github.com/HatiCode/sepal/pkg/models"
	"github.com/HatiCode/sepal/pkg/storage"
)

// Result is the outcome of one training run.
type Result struct {
	Model    *models.RandomForest
	Metadata models.Metadata
	Duration time.Duration
}

// Artifacts returns the persistable part of the result.
func (r *Result) Artifacts() storage.Artifacts {
	return storage.Artifacts{Model: r.Model, Metadata: r.Metadata}
}

// Train loads the bundled dataset, splits it, fits a forest on the train
// partition and scores it on the test partition.
func Train(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	ds, err := dataset.Load()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	train, test, err := dataset.Split(ds, cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	forest := models.NewRandomForest(cfg.NEstimators, cfg.Seed)
	forest.MaxDepth = cfg.MaxDepth
	forest.MinSamplesSplit = cfg.MinSamplesSplit
	forest.MaxFeatures = cfg.MaxFeatures

	if err := forest.Fit(ctx, train.Features, train.Labels); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	accuracy, err := Accuracy(forest, test.Features, test.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	return &Result{
		Model: forest,
		Metadata: models.Metadata{
			Accuracy:     accuracy,
			FeatureNames: ds.FeatureNames,
			TargetNames:  ds.ClassNames,
			NSamples:     ds.Len(),
			NFeatures:    ds.NumFeatures(),
		},
		Duration: time.Since(start),
	}, nil
}

// Accuracy returns the fraction of samples the classifier labels correctly.
func Accuracy(c models.Classifier, X [][]float64, y []int) (float64, error) {
	if len(X) == 0 {
		return 0, errors.New("no samples to evaluate")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("features and labels size mismatch: %d != %d", len(X), len(y))
	}

	correct := 0
	for i, x := range X {
		label, err := c.Predict(x)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		if label == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}

// Run trains a model and saves it to store.
func Run(ctx context.Context, store storage.Store, cfg Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("training random forest",
		"n_estimators", cfg.NEstimators,
		"max_depth", cfg.MaxDepth,
		"test_ratio", cfg.TestRatio,
		"seed", cfg.Seed,
	)

	result, err := Train(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := store.Save(ctx, result.Artifacts()); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	logger.Info("model trained",
		"accuracy", result.Metadata.Accuracy,
		"n_samples", result.Metadata.NSamples,
		"n_features", result.Metadata.NFeatures,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// EnsureArtifacts loads the artifacts from store, training and saving a new
// model first when none is stored. trained reports whether training ran.
func EnsureArtifacts(ctx context.Context, store storage.Store, cfg Config, logger *slog.Logger) (artifacts storage.Artifacts, trained bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	artifacts, found, err := store.Load(ctx)
	if err != nil {
		return storage.Artifacts{}, false, fmt.Errorf("load artifacts: %w", err)
	}
	if found {
		return artifacts, false, nil
	}

	logger.Info("model not found, training model")
	if _, err := Run(ctx, store, cfg, logger); err != nil {
		return storage.Artifacts{}, false, err
	}

	artifacts, found, err = store.Load(ctx)
	if err != nil {
		return storage.Artifacts{}, true, fmt.Errorf("load artifacts: %w", err)
	}
	if !found {
		return storage.Artifacts{}, true, errors.New("artifacts missing right after training")
	}
	return artifacts, true, nil
}
