package matrix

import (
	"testing"

	"go.viam.com/test"
)

func TestSampleIndicesWithoutReplacement(t *testing.T) {
	src := NewSeededSource(0)
	dst := make([]int, 4)
	for iter := 0; iter < 500; iter++ {
		err := SampleIndicesWithoutReplacement(dst, 12, src)
		test.That(t, err, test.ShouldBeNil)
		seen := map[int]bool{}
		for _, idx := range dst {
			test.That(t, idx, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, idx, test.ShouldBeLessThan, 12)
			test.That(t, seen[idx], test.ShouldBeFalse)
			seen[idx] = true
		}
	}

	// the whole range is a permutation
	all := make([]int, 4)
	err := SampleIndicesWithoutReplacement(all, 4, src)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, all, test.ShouldHaveLength, 4)

	err = SampleIndicesWithoutReplacement(make([]int, 5), 4, src)
	test.That(t, err, test.ShouldNotBeNil)
	err = SampleIndicesWithoutReplacement(dst, 10, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSampleBatchesDeterministic(t *testing.T) {
	b1, err := SampleBatches(100, 4, 40, NewSeededSource(7))
	test.That(t, err, test.ShouldBeNil)
	b2, err := SampleBatches(100, 4, 40, NewSeededSource(7))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b1, test.ShouldResemble, b2)

	b3, err := SampleBatches(100, 4, 40, NewSeededSource(8))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b1, test.ShouldNotResemble, b3)

	_, err = SampleBatches(-1, 4, 40, NewSeededSource(8))
	test.That(t, err, test.ShouldNotBeNil)
}
