// Package models provides the classifiers used by sepal and the metadata
// record persisted next to a fitted model.
//
// The serving layer only relies on the Classifier interface: it never looks
// inside a fitted model beyond Predict and PredictProba.
package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFitted is returned when a model is used before Fit succeeded.
var ErrNotFitted = errors.New("model not fitted")

// Classifier is a multi-class classifier over dense float feature vectors.
type Classifier interface {
	// Name returns the model identifier.
	Name() string

	// Fit trains the classifier on X (one row per sample) and class labels y.
	// Labels must be in [0, n_classes).
	Fit(ctx context.Context, X [][]float64, y []int) error

	// Predict returns the most probable class index for one sample.
	Predict(x []float64) (int, error)

	// PredictProba returns the per-class probabilities for one sample.
	// The returned slice has one entry per class and sums to 1.
	PredictProba(x []float64) ([]float64, error)

	// NumFeatures returns the feature count the model was fitted on.
	NumFeatures() int
}

// Metadata is the summary record written next to a fitted model.
type Metadata struct {
	Accuracy     float64  `json:"accuracy"`
	FeatureNames []string `json:"feature_names"`
	TargetNames  []string `json:"target_names"`
	NSamples     int      `json:"n_samples"`
	NFeatures    int      `json:"n_features"`
}

// Validate checks the invariants of the metadata record.
func (m Metadata) Validate() error {
	if m.Accuracy < 0 || m.Accuracy > 1 {
		return fmt.Errorf("accuracy %v out of range [0,1]", m.Accuracy)
	}
	if m.NFeatures <= 0 {
		return fmt.Errorf("n_features must be > 0, got %d", m.NFeatures)
	}
	if m.NFeatures != len(m.FeatureNames) {
		return fmt.Errorf("n_features (%d) does not match feature_names length (%d)", m.NFeatures, len(m.FeatureNames))
	}
	if len(m.TargetNames) == 0 {
		return errors.New("target_names cannot be empty")
	}
	return nil
}

// ClassName maps a class index to its name.
func (m Metadata) ClassName(class int) (string, error) {
	if class < 0 || class >= len(m.TargetNames) {
		return "", fmt.Errorf("class index %d out of range (%d classes)", class, len(m.TargetNames))
	}
	return m.TargetNames[class], nil
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
