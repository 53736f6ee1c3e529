// Package storage persists the trained model and its metadata record.
//
// Artifacts are written only by the training step and read once by the
// server at startup. Three backends are provided:
//   - FileStore: two flat files in a directory (default)
//   - MemoryStore: process-local, for tests
//   - RedisStore: shared artifacts for several server replicas
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HatiCode/sepal/pkg/models"
)

// Artifacts is a fitted model together with its metadata record.
type Artifacts struct {
	Model    *models.RandomForest
	Metadata models.Metadata
}

// Validate checks the model structure and that the model and the metadata
// agree with each other.
func (a Artifacts) Validate() error {
	if a.Model == nil || len(a.Model.Trees) == 0 {
		return errors.New("model artifact is empty")
	}
	if err := a.Model.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	if err := a.Metadata.Validate(); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}
	if a.Model.NumFeatures() != a.Metadata.NFeatures {
		return fmt.Errorf("model expects %d features but metadata declares %d", a.Model.NumFeatures(), a.Metadata.NFeatures)
	}
	if a.Model.NClasses != len(a.Metadata.TargetNames) {
		return fmt.Errorf("model has %d classes but metadata names %d", a.Model.NClasses, len(a.Metadata.TargetNames))
	}
	return nil
}

// Store reads and writes training artifacts.
type Store interface {
	// Save persists both artifacts, replacing any previous ones.
	Save(ctx context.Context, artifacts Artifacts) error

	// Load returns the stored artifacts.
	// found is false when no model has been saved yet; a model without its
	// metadata record is reported as an error.
	Load(ctx context.Context) (artifacts Artifacts, found bool, err error)
}

func encodeModel(m *models.RandomForest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

func decodeModel(data []byte) (*models.RandomForest, error) {
	var m models.RandomForest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return &m, nil
}

func encodeMetadata(m models.Metadata) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (models.Metadata, error) {
	var m models.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Metadata{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}

func decode(modelData, metadataData []byte) (Artifacts, error) {
	model, err := decodeModel(modelData)
	if err != nil {
		return Artifacts{}, err
	}
	metadata, err := decodeMetadata(metadataData)
	if err != nil {
		return Artifacts{}, err
	}
	artifacts := Artifacts{Model: model, Metadata: metadata}
	if err := artifacts.Validate(); err != nil {
		return Artifacts{}, err
	}
	return artifacts, nil
}
