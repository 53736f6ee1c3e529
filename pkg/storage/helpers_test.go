package storage

import (
	"context"
	"testing"

	"github.com/HatiCode/sepal/pkg/models"
)

func testArtifacts(t *testing.T) Artifacts {
	t.Helper()

	X := [][]float64{{1, 1}, {1, 2}, {2, 1}, {5, 5}, {5, 6}, {6, 5}}
	y := []int{0, 0, 0, 1, 1, 1}

	forest := models.NewRandomForest(5, 7)
	if err := forest.Fit(context.Background(), X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	return Artifacts{
		Model: forest,
		Metadata: models.Metadata{
			Accuracy:     1.0,
			FeatureNames: []string{"x", "y"},
			TargetNames:  []string{"low", "high"},
			NSamples:     len(X),
			NFeatures:    2,
		},
	}
}
