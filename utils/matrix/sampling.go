// Package matrix holds sampling helpers over index ranges.
package matrix

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// NewSeededSource returns a deterministic random source for the given seed. Two sources built
// from the same seed produce the same stream.
func NewSeededSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, seed)
}

// SampleIndicesWithoutReplacement fills dst with len(dst) distinct integers drawn uniformly from
// [0, n), using src as the only source of randomness.
func SampleIndicesWithoutReplacement(dst []int, n int, src rand.Source) error {
	if len(dst) > n {
		return errors.Errorf("cannot sample %d distinct indices from a range of %d", len(dst), n)
	}
	if src == nil {
		return errors.New("a random source is required for reproducible sampling")
	}
	sampleuv.WithoutReplacement(dst, n, src)
	return nil
}

// SampleBatches draws numBatches independent samples of batchSize distinct indices from [0, n).
// Batches are drawn in order from src so the result only depends on the seed of src.
func SampleBatches(numBatches, batchSize, n int, src rand.Source) ([][]int, error) {
	if numBatches < 0 {
		return nil, errors.Errorf("number of batches must be >= 0, got %d", numBatches)
	}
	batches := make([][]int, numBatches)
	for i := range batches {
		batches[i] = make([]int, batchSize)
		if err := SampleIndicesWithoutReplacement(batches[i], n, src); err != nil {
			return nil, err
		}
	}
	return batches, nil
}
