package models

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// DecisionTree is a CART classifier using Gini impurity.
//
// Nodes are stored in a flat slice so the fitted tree serializes to plain
// JSON. Node 0 is the root; internal nodes hold absolute child indices and
// leaves hold the class distribution of the training samples that reached
// them.
type DecisionTree struct {
	// MaxDepth limits the depth of the tree. Zero grows until leaves are pure.
	MaxDepth int `json:"max_depth"`

	// MinSamplesSplit is the minimum number of samples to split a node.
	MinSamplesSplit int `json:"min_samples_split"`

	// MaxFeatures is the number of candidate features per split.
	// Zero considers every feature.
	MaxFeatures int `json:"max_features"`

	// Seed drives the candidate feature order when Fit is called directly.
	Seed uint64 `json:"seed"`

	NClasses  int        `json:"n_classes"`
	NFeatures int        `json:"n_features"`
	Nodes     []TreeNode `json:"nodes"`
}

// TreeNode is one node of a fitted DecisionTree.
type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	Distribution []float64 `json:"distribution,omitempty"`
	IsLeaf       bool      `json:"is_leaf"`
}

// NewDecisionTree creates an unfitted tree.
func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
	}
}

// Name returns the model identifier.
func (t *DecisionTree) Name() string {
	return "decision_tree"
}

// NumFeatures returns the feature count the tree was fitted on.
func (t *DecisionTree) NumFeatures() int {
	return t.NFeatures
}

// Fit grows the tree on every sample of X.
func (t *DecisionTree) Fit(ctx context.Context, X [][]float64, y []int) error {
	nClasses, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.grow(X, y, idx, nClasses, rand.New(rand.NewPCG(t.Seed, t.Seed)))
	return nil
}

// Predict returns the class with the highest leaf probability.
func (t *DecisionTree) Predict(x []float64) (int, error) {
	dist, err := t.leafDistribution(x)
	if err != nil {
		return 0, err
	}
	return argmax(dist), nil
}

// PredictProba returns a copy of the class distribution of the leaf x falls in.
func (t *DecisionTree) PredictProba(x []float64) ([]float64, error) {
	dist, err := t.leafDistribution(x)
	if err != nil {
		return nil, err
	}
	return slices.Clone(dist), nil
}

func (t *DecisionTree) leafDistribution(x []float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != t.NFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", t.NFeatures, len(x))
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Distribution, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(x) {
			return nil, errors.New("feature index out of range")
		}
		next := node.RightChild
		if x[node.FeatureIdx] <= node.Threshold {
			next = node.LeftChild
		}
		// children always follow their parent, so every step moves forward
		if next <= idx || next >= len(t.Nodes) {
			return nil, errors.New("invalid tree state")
		}
		idx = next
	}
}

// Validate checks the node structure of a fitted tree that is used with
// nFeatures inputs and nClasses classes.
func (t *DecisionTree) Validate(nFeatures, nClasses int) error {
	if len(t.Nodes) == 0 {
		return ErrNotFitted
	}
	if t.NFeatures != nFeatures {
		return fmt.Errorf("tree has %d features, want %d", t.NFeatures, nFeatures)
	}
	if t.NClasses != nClasses {
		return fmt.Errorf("tree has %d classes, want %d", t.NClasses, nClasses)
	}

	for i, node := range t.Nodes {
		if node.IsLeaf {
			if len(node.Distribution) != nClasses {
				return fmt.Errorf("node %d: leaf distribution has %d entries, want %d", i, len(node.Distribution), nClasses)
			}
			for _, p := range node.Distribution {
				if math.IsNaN(p) || p < 0 || p > 1 {
					return fmt.Errorf("node %d: invalid leaf probability %v", i, p)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if math.IsNaN(node.Threshold) {
			return fmt.Errorf("node %d: threshold is NaN", i)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child index %d out of range", i, child)
			}
		}
	}
	return nil
}

// grow builds the tree from the samples listed in idx. idx may contain
// duplicates (bootstrap samples); each occurrence counts as one sample.
func (t *DecisionTree) grow(X [][]float64, y []int, idx []int, nClasses int, rng *rand.Rand) {
	t.NClasses = nClasses
	t.NFeatures = len(X[0])
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	t.Nodes = t.Nodes[:0]
	t.buildNode(X, y, idx, 0, rng)
}

func (t *DecisionTree) buildNode(X [][]float64, y []int, idx []int, depth int, rng *rand.Rand) int {
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{})

	counts := classCounts(y, idx, t.NClasses)
	if len(idx) < t.MinSamplesSplit || isPure(counts) || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		t.Nodes[nodeID] = leafNode(counts, len(idx))
		return nodeID
	}

	feature, threshold, ok := t.findBestSplit(X, y, idx, counts, rng)
	if !ok {
		t.Nodes[nodeID] = leafNode(counts, len(idx))
		return nodeID
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftID := t.buildNode(X, y, left, depth+1, rng)
	rightID := t.buildNode(X, y, right, depth+1, rng)

	t.Nodes[nodeID] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  leftID,
		RightChild: rightID,
	}
	return nodeID
}

// findBestSplit visits features in random order and evaluates at least
// MaxFeatures non-constant ones, continuing past that only while no valid
// split was found.
func (t *DecisionTree) findBestSplit(X [][]float64, y []int, idx []int, counts []int, rng *rand.Rand) (int, float64, bool) {
	maxFeatures := t.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > t.NFeatures {
		maxFeatures = t.NFeatures
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.Inf(1)
	visited := 0

	samples := make([]sample, len(idx))
	for _, feature := range rng.Perm(t.NFeatures) {
		if visited >= maxFeatures {
			break
		}
		for i, row := range idx {
			samples[i] = sample{value: X[row][feature], label: y[row]}
		}
		impurity, threshold, ok := bestThresholdFor(samples, counts)
		if !ok {
			continue
		}
		visited++
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = feature
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

type sample struct {
	value float64
	label int
}

// bestThresholdFor sorts samples by value and scans every boundary between
// distinct values. ok is false when the feature is constant.
func bestThresholdFor(samples []sample, counts []int) (float64, float64, bool) {
	slices.SortFunc(samples, func(a, b sample) int {
		return cmp.Compare(a.value, b.value)
	})

	n := len(samples)
	left := make([]int, len(counts))
	right := make([]int, len(counts))

	bestImpurity := math.Inf(1)
	bestThreshold := 0.0
	found := false
	for i := 0; i < n-1; i++ {
		left[samples[i].label]++
		if !(samples[i].value < samples[i+1].value) {
			continue
		}
		nLeft := i + 1
		nRight := n - nLeft
		for c := range counts {
			right[c] = counts[c] - left[c]
		}
		impurity := (float64(nLeft)*gini(left, nLeft) + float64(nRight)*gini(right, nRight)) / float64(n)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestThreshold = (samples[i].value + samples[i+1].value) / 2
			found = true
		}
	}
	return bestImpurity, bestThreshold, found
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func leafNode(counts []int, total int) TreeNode {
	dist := make([]float64, len(counts))
	for c, n := range counts {
		if total > 0 {
			dist[c] = float64(n) / float64(total)
		}
	}
	return TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		Distribution: dist,
		IsLeaf:       true,
	}
}

// checkTrainingSet validates X and y and returns the number of classes.
func checkTrainingSet(X [][]float64, y []int) (int, error) {
	if len(X) == 0 || len(y) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("features and labels size mismatch: %d != %d", len(X), len(y))
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return 0, errors.New("samples have no features")
	}
	nClasses := 0
	for i, row := range X {
		if len(row) != nFeatures {
			return 0, fmt.Errorf("sample %d has %d features, want %d", i, len(row), nFeatures)
		}
		if y[i] < 0 {
			return 0, fmt.Errorf("sample %d has negative label %d", i, y[i])
		}
		if y[i]+1 > nClasses {
			nClasses = y[i] + 1
		}
	}
	return nClasses, nil
}
