package storage

import (
	"context"
	"sync"
	"testing"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}

	_, found, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if found {
		t.Error("new store should be empty")
	}
}

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := NewMemoryStore()
	artifacts := testArtifacts(t)

	if err := store.Save(context.Background(), artifacts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, found, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("expected artifacts to be found")
	}
	if got.Metadata.Accuracy != artifacts.Metadata.Accuracy {
		t.Errorf("Accuracy = %v, want %v", got.Metadata.Accuracy, artifacts.Metadata.Accuracy)
	}
	if got.Model != artifacts.Model {
		t.Error("expected the saved model instance")
	}

	store.Reset()
	if _, found, _ := store.Load(context.Background()); found {
		t.Error("expected store to be empty after Reset()")
	}
}

func TestMemoryStore_SaveInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifacts)
	}{
		{name: "nil model", mutate: func(a *Artifacts) { a.Model = nil }},
		{name: "feature count mismatch", mutate: func(a *Artifacts) {
			a.Metadata.NFeatures = 3
			a.Metadata.FeatureNames = []string{"x", "y", "z"}
		}},
		{name: "class count mismatch", mutate: func(a *Artifacts) { a.Metadata.TargetNames = []string{"only"} }},
		{name: "accuracy out of range", mutate: func(a *Artifacts) { a.Metadata.Accuracy = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			artifacts := testArtifacts(t)
			tt.mutate(&artifacts)

			if err := store.Save(context.Background(), artifacts); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, testArtifacts(t)); err != context.Canceled {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
	if _, _, err := store.Load(ctx); err != context.Canceled {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	artifacts := testArtifacts(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.Save(context.Background(), artifacts); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := store.Load(context.Background()); err != nil {
				t.Errorf("Load() error = %v", err)
			}
		}()
	}
	wg.Wait()
}
