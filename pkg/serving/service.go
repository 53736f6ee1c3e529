// Package serving validates feature vectors against the loaded model and
// shapes prediction results.
//
// A Service is built once at startup from whatever the artifact store
// returned and never changes afterwards, so it can be shared by all request
// goroutines without locking.
package serving

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/sepal/pkg/models"
)

// ErrModelNotLoaded is returned by every operation that needs a model when
// the service was started without one.
var ErrModelNotLoaded = errors.New("Model not loaded")

// FeatureCountError reports a feature vector whose length does not match
// the model's declared feature count.
type FeatureCountError struct {
	Expected int
	Got      int
}

func (e *FeatureCountError) Error() string {
	return fmt.Sprintf("Expected %d features, got %d", e.Expected, e.Got)
}

// NonFiniteFeatureError reports a NaN or infinite feature value.
type NonFiniteFeatureError struct {
	Index int
	Value float64
}

func (e *NonFiniteFeatureError) Error() string {
	return fmt.Sprintf("Feature %d must be a finite number, got %v", e.Index, e.Value)
}

// Prediction is the result of classifying one feature vector.
type Prediction struct {
	Class         int                `json:"prediction"`
	ClassName     string             `json:"prediction_class"`
	Probabilities map[string]float64 `json:"probabilities"`
	FeatureNames  []string           `json:"feature_names"`
	ModelAccuracy float64            `json:"model_accuracy"`
}

// Service answers prediction and metadata queries for a single model.
type Service struct {
	model    models.Classifier
	metadata *models.Metadata
}

// NewService creates a service. The service is loaded only when both the
// model and its metadata are given.
func NewService(model models.Classifier, metadata *models.Metadata) *Service {
	if model == nil || metadata == nil {
		return &Service{}
	}
	md := *metadata
	return &Service{model: model, metadata: &md}
}

// Loaded reports whether a model and its metadata are available.
func (s *Service) Loaded() bool {
	return s.model != nil && s.metadata != nil
}

// Metadata returns the metadata record of the loaded model.
func (s *Service) Metadata() (models.Metadata, bool) {
	if !s.Loaded() {
		return models.Metadata{}, false
	}
	return *s.metadata, true
}

// Predict classifies one feature vector.
func (s *Service) Predict(ctx context.Context, features []float64) (Prediction, error) {
	if !s.Loaded() {
		return Prediction{}, ErrModelNotLoaded
	}
	if len(features) != s.metadata.NFeatures {
		return Prediction{}, &FeatureCountError{Expected: s.metadata.NFeatures, Got: len(features)}
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, &NonFiniteFeatureError{Index: i, Value: v}
		}
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	class, err := s.model.Predict(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	proba, err := s.model.PredictProba(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict proba: %w", err)
	}

	className, err := s.metadata.ClassName(class)
	if err != nil {
		return Prediction{}, err
	}
	if len(proba) != len(s.metadata.TargetNames) {
		return Prediction{}, fmt.Errorf("model returned %d probabilities for %d classes", len(proba), len(s.metadata.TargetNames))
	}

	probabilities := make(map[string]float64, len(proba))
	for i, p := range proba {
		probabilities[s.metadata.TargetNames[i]] = p
	}

	return Prediction{
		Class:         class,
		ClassName:     className,
		Probabilities: probabilities,
		FeatureNames:  s.metadata.FeatureNames,
		ModelAccuracy: s.metadata.Accuracy,
	}, nil
}
