package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/HatiCode/sepal/cmd/trainer/config"
	"github.com/HatiCode/sepal/pkg/storage"
)

func TestRun_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		NEstimators: 10,
		Seed:        -1,
		Storage:     "file",
		ArtifactDir: dir,
	}

	if err := run(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	artifacts, found, err := storage.NewFileStore(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("expected artifacts after run()")
	}
	if len(artifacts.Model.Trees) != 10 {
		t.Errorf("len(Trees) = %d, want 10", len(artifacts.Model.Trees))
	}
	if artifacts.Metadata.NFeatures != 4 {
		t.Errorf("NFeatures = %d, want 4", artifacts.Metadata.NFeatures)
	}
}

func TestRun_InvalidStorage(t *testing.T) {
	for _, backend := range []string{"tape", "memory", ""} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{Seed: -1, Storage: backend, ArtifactDir: t.TempDir()}

			if err := run(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
				t.Errorf("expected error for storage %q, got nil", backend)
			}
		})
	}
}
