// Package split partitions a dataset into train and test halves with a
// seeded shuffle, so a run's split is reproducible from its recorded seed.
package split

import (
	"fmt"
	"math/rand"

	"pricepipe/internal/dataset"
)

// Result holds the two halves of a split and the indices that produced them.
type Result struct {
	Train        *dataset.Dataset
	Test         *dataset.Dataset
	TrainIndices []int
	TestIndices  []int
}

// TrainTest splits ds into train and test sets. testRatio is the fraction of
// rows assigned to the test set and must be in (0, 1); the test set gets at
// least one row when the dataset has two or more.
func TrainTest(ds *dataset.Dataset, testRatio float64, seed int64) (*Result, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, fmt.Errorf("split: test ratio must be in (0, 1), got %g", testRatio)
	}
	n := ds.NumRows()
	if n < 2 {
		return nil, fmt.Errorf("split: need at least 2 rows, got %d", n)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	nTest := int(float64(n) * testRatio)
	if nTest == 0 {
		nTest = 1
	}
	if nTest == n {
		nTest = n - 1
	}

	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)

	train, err := ds.TakeRows(trainIdx)
	if err != nil {
		return nil, err
	}
	test, err := ds.TakeRows(testIdx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Train:        train,
		Test:         test,
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}, nil
}
