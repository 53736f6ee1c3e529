package models

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
)

// RandomForest is a bagged ensemble of CART trees.
//
// Each tree is grown to purity on a bootstrap sample and considers
// MaxFeatures random candidate features per split (sqrt of the feature
// count by default). Class probabilities are the mean of the per-tree leaf
// distributions.
//
// Fitting is deterministic for a given Seed: the master generator draws one
// seed per tree up front, so trees can be grown concurrently.
type RandomForest struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MaxFeatures     int    `json:"max_features"`
	Seed            uint64 `json:"seed"`

	NClasses  int             `json:"n_classes"`
	NFeatures int             `json:"n_features"`
	Trees     []*DecisionTree `json:"trees"`
}

// NewRandomForest creates an unfitted forest with nEstimators trees.
func NewRandomForest(nEstimators int, seed uint64) *RandomForest {
	return &RandomForest{
		NEstimators:     nEstimators,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Name returns the model identifier.
func (f *RandomForest) Name() string {
	return "random_forest"
}

// NumFeatures returns the feature count the forest was fitted on.
func (f *RandomForest) NumFeatures() int {
	return f.NFeatures
}

// Fit grows NEstimators trees on bootstrap samples of X.
func (f *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	nClasses, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	if f.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be > 0, got %d", f.NEstimators)
	}

	nFeatures := len(X[0])
	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}

	master := rand.New(rand.NewPCG(f.Seed, f.Seed))
	seeds := make([]uint64, f.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*DecisionTree, f.NEstimators)
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	for i := range trees {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			idx := make([]int, len(X))
			for j := range idx {
				idx[j] = rng.IntN(len(X))
			}

			tree := &DecisionTree{
				MaxDepth:        f.MaxDepth,
				MinSamplesSplit: f.MinSamplesSplit,
				MaxFeatures:     maxFeatures,
				Seed:            seeds[i],
			}
			tree.grow(X, y, idx, nClasses, rng)
			trees[i] = tree
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	f.NClasses = nClasses
	f.NFeatures = nFeatures
	f.Trees = trees
	return nil
}

// Validate checks a fitted forest, typically one decoded from storage,
// before it is used for prediction.
func (f *RandomForest) Validate() error {
	if len(f.Trees) == 0 {
		return ErrNotFitted
	}
	if f.NFeatures <= 0 || f.NClasses <= 0 {
		return fmt.Errorf("forest has %d features and %d classes", f.NFeatures, f.NClasses)
	}
	for i, tree := range f.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := tree.Validate(f.NFeatures, f.NClasses); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Predict returns the class with the highest mean probability.
func (f *RandomForest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// PredictProba averages the leaf distributions of every tree.
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != f.NFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", f.NFeatures, len(x))
	}

	proba := make([]float64, f.NClasses)
	for i, tree := range f.Trees {
		dist, err := tree.leafDistribution(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, p := range dist {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}
