// Package dataset provides the bundled Iris dataset and a seeded
// train/test split.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

//go:embed iris.csv
var irisCSV []byte

// FeatureNames are the Iris feature names, in column order.
var FeatureNames = []string{
	"sepal length (cm)",
	"sepal width (cm)",
	"petal length (cm)",
	"petal width (cm)",
}

// ClassNames are the Iris species, indexed by label.
var ClassNames = []string{"setosa", "versicolor", "virginica"}

// FormFields are the HTML form field names for each feature, in column order.
var FormFields = []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}

// Dataset is a labelled tabular dataset.
type Dataset struct {
	Features     [][]float64
	Labels       []int
	FeatureNames []string
	ClassNames   []string
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// NumFeatures returns the number of features per sample.
func (d *Dataset) NumFeatures() int {
	return len(d.FeatureNames)
}

// Load parses the bundled Iris dataset: 150 samples, 4 features, 3 classes.
func Load() (*Dataset, error) {
	return parse(irisCSV, FeatureNames, ClassNames)
}

func parse(data []byte, featureNames, classNames []string) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(featureNames) + 1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("dataset has no samples")
	}

	ds := &Dataset{
		Features:     make([][]float64, 0, len(records)-1),
		Labels:       make([]int, 0, len(records)-1),
		FeatureNames: append([]string(nil), featureNames...),
		ClassNames:   append([]string(nil), classNames...),
	}

	// first record is the header
	for line, record := range records[1:] {
		row := make([]float64, len(featureNames))
		for i := range featureNames {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line+2, i+1, err)
			}
			row[i] = v
		}
		label, err := strconv.Atoi(record[len(featureNames)])
		if err != nil {
			return nil, fmt.Errorf("line %d label: %w", line+2, err)
		}
		if label < 0 || label >= len(classNames) {
			return nil, fmt.Errorf("line %d: label %d out of range", line+2, label)
		}
		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, label)
	}

	return ds, nil
}

// Split shuffles the sample indices with a PCG generator seeded by seed and
// moves the first ceil(n*testRatio) of them to the test partition.
// The same dataset, ratio and seed always produce the same partitions.
func Split(ds *Dataset, testRatio float64, seed uint64) (train, test *Dataset, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0,1), got %v", testRatio)
	}
	n := ds.Len()
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest <= 0 || nTest >= n {
		return nil, nil, fmt.Errorf("test ratio %v leaves an empty partition for %d samples", testRatio, n)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)

	return ds.subset(perm[nTest:]), ds.subset(perm[:nTest]), nil
}

func (d *Dataset) subset(indices []int) *Dataset {
	out := &Dataset{
		Features:     make([][]float64, len(indices)),
		Labels:       make([]int, len(indices)),
		FeatureNames: d.FeatureNames,
		ClassNames:   d.ClassNames,
	}
	for i, idx := range indices {
		out.Features[i] = d.Features[idx]
		out.Labels[i] = d.Labels[idx]
	}
	return out
}
