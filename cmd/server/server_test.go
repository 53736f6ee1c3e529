package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/sepal/cmd/server/metrics"
	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/training"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadService_TrainsOnEmptyStore(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(dir)
	m := metrics.New(prometheus.NewRegistry())

	svc := loadService(context.Background(), store, training.DefaultConfig(), discardLogger(), m)

	if !svc.Loaded() {
		t.Fatal("expected a loaded service")
	}
	for _, name := range []string{storage.DefaultModelFile, storage.DefaultMetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s not written: %v", name, err)
		}
	}
	if got := testutil.ToFloat64(m.ModelLoaded); got != 1 {
		t.Errorf("model loaded gauge = %v, want 1", got)
	}

	// A second start reuses the stored artifacts.
	again := loadService(context.Background(), store, training.DefaultConfig(), discardLogger(), nil)
	md1, _ := svc.Metadata()
	md2, _ := again.Metadata()
	if md1.Accuracy != md2.Accuracy {
		t.Errorf("accuracy changed across restarts: %v vs %v", md1.Accuracy, md2.Accuracy)
	}
}

func TestLoadService_BrokenArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storage.DefaultModelFile), []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	m := metrics.New(prometheus.NewRegistry())

	svc := loadService(context.Background(), storage.NewFileStore(dir), training.DefaultConfig(), discardLogger(), m)

	if svc.Loaded() {
		t.Error("expected an unloaded service for broken artifacts")
	}
	if got := testutil.ToFloat64(m.ModelLoaded); got != 0 {
		t.Errorf("model loaded gauge = %v, want 0", got)
	}
}
