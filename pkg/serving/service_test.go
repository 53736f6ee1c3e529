package serving

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/HatiCode/sepal/pkg/models"
	"github.com/HatiCode/sepal/pkg/training"
)

type stubClassifier struct {
	class      int
	proba      []float64
	predictErr error
	probaErr   error
}

func (s *stubClassifier) Name() string { return "stub" }
func (s *stubClassifier) Fit(context.Context, [][]float64, []int) error { return nil }
func (s *stubClassifier) Predict([]float64) (int, error) { return s.class, s.predictErr }
func (s *stubClassifier) PredictProba([]float64) ([]float64, error) { return s.proba, s.probaErr }
func (s *stubClassifier) NumFeatures() int { return 2 }

func stubMetadata() *models.Metadata {
	return &models.Metadata{
		Accuracy:     0.5,
		FeatureNames: []string{"a", "b"},
		TargetNames:  []string{"x", "y"},
		NSamples:     10,
		NFeatures:    2,
	}
}

func trainedService(t *testing.T) *Service {
	t.Helper()
	result, err := training.Train(context.Background(), training.DefaultConfig())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return NewService(result.Model, &result.Metadata)
}

func TestNewService_Loaded(t *testing.T) {
	tests := []struct {
		name     string
		model    models.Classifier
		metadata *models.Metadata
		want     bool
	}{
		{name: "model and metadata", model: &stubClassifier{}, metadata: stubMetadata(), want: true},
		{name: "no metadata", model: &stubClassifier{}, want: false},
		{name: "no model", metadata: stubMetadata(), want: false},
		{name: "nothing", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.model, tt.metadata)
			if got := svc.Loaded(); got != tt.want {
				t.Errorf("Loaded() = %v, want %v", got, tt.want)
			}
			if _, ok := svc.Metadata(); ok != tt.want {
				t.Errorf("Metadata() ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestPredict_NotLoaded(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Predict(context.Background(), []float64{1, 2, 3, 4})
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Fatalf("Predict() error = %v, want ErrModelNotLoaded", err)
	}
	if err.Error() != "Model not loaded" {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestPredict_FeatureCount(t *testing.T) {
	svc := NewService(&stubClassifier{}, stubMetadata())

	for _, features := range [][]float64{nil, {1}, {1, 2, 3}} {
		_, err := svc.Predict(context.Background(), features)
		var fcErr *FeatureCountError
		if !errors.As(err, &fcErr) {
			t.Fatalf("Predict(%v) error = %v, want *FeatureCountError", features, err)
		}
		if fcErr.Expected != 2 || fcErr.Got != len(features) {
			t.Errorf("FeatureCountError = %+v", fcErr)
		}
	}

	_, err := svc.Predict(context.Background(), []float64{1, 2, 3})
	if err.Error() != "Expected 2 features, got 3" {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestPredict_NonFinite(t *testing.T) {
	svc := NewService(&stubClassifier{proba: []float64{1, 0}}, stubMetadata())

	tests := []struct {
		name      string
		features  []float64
		wantIndex int
	}{
		{name: "NaN", features: []float64{math.NaN(), 1}, wantIndex: 0},
		{name: "positive infinity", features: []float64{1, math.Inf(1)}, wantIndex: 1},
		{name: "negative infinity", features: []float64{math.Inf(-1), 1}, wantIndex: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), tt.features)
			var nfErr *NonFiniteFeatureError
			if !errors.As(err, &nfErr) {
				t.Fatalf("Predict() error = %v, want *NonFiniteFeatureError", err)
			}
			if nfErr.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", nfErr.Index, tt.wantIndex)
			}
		})
	}
}

func TestPredict_ModelErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		model *stubClassifier
	}{
		{name: "predict fails", model: &stubClassifier{predictErr: boom}},
		{name: "predict proba fails", model: &stubClassifier{proba: []float64{1, 0}, probaErr: boom}},
		{name: "class out of range", model: &stubClassifier{class: 5, proba: []float64{1, 0}}},
		{name: "probability count mismatch", model: &stubClassifier{proba: []float64{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.model, stubMetadata())
			_, err := svc.Predict(context.Background(), []float64{1, 2})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var fcErr *FeatureCountError
			if errors.Is(err, ErrModelNotLoaded) || errors.As(err, &fcErr) {
				t.Errorf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestPredict_Stub(t *testing.T) {
	svc := NewService(&stubClassifier{class: 1, proba: []float64{0.25, 0.75}}, stubMetadata())

	got, err := svc.Predict(context.Background(), []float64{1, 2})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got.Class != 1 || got.ClassName != "y" {
		t.Errorf("prediction = %d/%s, want 1/y", got.Class, got.ClassName)
	}
	if got.Probabilities["x"] != 0.25 || got.Probabilities["y"] != 0.75 {
		t.Errorf("probabilities = %v", got.Probabilities)
	}
	if got.ModelAccuracy != 0.5 {
		t.Errorf("ModelAccuracy = %v, want 0.5", got.ModelAccuracy)
	}
	if len(got.FeatureNames) != 2 {
		t.Errorf("FeatureNames = %v", got.FeatureNames)
	}
}

func TestPredict_CanonicalSamples(t *testing.T) {
	svc := trainedService(t)

	tests := []struct {
		features []float64
		want     string
	}{
		{features: []float64{5.1, 3.5, 1.4, 0.2}, want: "setosa"},
		{features: []float64{6.0, 2.7, 5.1, 1.6}, want: "versicolor"},
		{features: []float64{6.3, 3.3, 6.0, 2.5}, want: "virginica"},
	}

	for _, tt := range tests {
		got, err := svc.Predict(context.Background(), tt.features)
		if err != nil {
			t.Fatalf("Predict(%v) error = %v", tt.features, err)
		}
		if got.ClassName != tt.want {
			t.Errorf("Predict(%v) = %s, want %s", tt.features, got.ClassName, tt.want)
		}

		sum := 0.0
		for _, p := range got.Probabilities {
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("probabilities sum = %v, want 1", sum)
		}
		if len(got.Probabilities) != 3 {
			t.Errorf("len(probabilities) = %d, want 3", len(got.Probabilities))
		}
	}
}

func TestPredict_ProbabilitiesSumToOne(t *testing.T) {
	svc := trainedService(t)

	for _, features := range [][]float64{
		{0, 0, 0, 0},
		{-3, 100, 2.5, 7},
		{4.9, 3.0, 1.4, 0.2},
		{7.7, 2.6, 6.9, 2.3},
	} {
		got, err := svc.Predict(context.Background(), features)
		if err != nil {
			t.Fatalf("Predict(%v) error = %v", features, err)
		}
		sum := 0.0
		for _, p := range got.Probabilities {
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("Predict(%v) probabilities sum = %v", features, sum)
		}
	}
}
