package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/HatiCode/sepal/cmd/server/metrics"
	"github.com/HatiCode/sepal/pkg/serving"
	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/training"
)

// loadService builds the prediction service from the artifact store,
// training and saving a model first when the store is empty. Any failure
// leaves the service without a model; the server still starts and reports
// itself unhealthy.
func loadService(ctx context.Context, store storage.Store, cfg training.Config, logger *slog.Logger, m *metrics.Metrics) *serving.Service {
	start := time.Now()
	artifacts, trained, err := training.EnsureArtifacts(ctx, store, cfg, logger)
	if trained {
		m.RecordTraining(time.Since(start).Seconds())
	}
	if err != nil {
		logger.Error("error loading model", "error", err)
		m.SetModel(false, 0)
		return serving.NewService(nil, nil)
	}

	logger.Info("model loaded successfully",
		"accuracy", artifacts.Metadata.Accuracy,
		"n_features", artifacts.Metadata.NFeatures,
		"classes", artifacts.Metadata.TargetNames,
		"trained", trained,
	)
	m.SetModel(true, artifacts.Metadata.Accuracy)
	return serving.NewService(artifacts.Model, &artifacts.Metadata)
}
