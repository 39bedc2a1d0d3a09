package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, totalSize := range []int{1, 3, ParallelFactor, ParallelFactor + 1, 1000, 4001} {
		seen := make([]int32, totalSize)
		var groups int
		var mu sync.Mutex
		var doneGroups int
		err := GroupWorkParallel(
			context.Background(),
			totalSize,
			func(numGroups int) { groups = numGroups },
			func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
				test.That(t, to-from, test.ShouldEqual, groupSize)
				return func(memberNum, workNum int) {
						atomic.AddInt32(&seen[workNum], 1)
					}, func() {
						mu.Lock()
						doneGroups++
						mu.Unlock()
					}
			},
		)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, groups, test.ShouldBeGreaterThan, 0)
		test.That(t, groups, test.ShouldBeLessThanOrEqualTo, totalSize)
		test.That(t, doneGroups, test.ShouldEqual, groups)
		for i, count := range seen {
			if count != 1 {
				t.Fatalf("item %d of %d visited %d times", i, totalSize, count)
			}
		}
	}
}

func TestGroupWorkParallelEmpty(t *testing.T) {
	called := false
	err := GroupWorkParallel(
		context.Background(),
		0,
		func(numGroups int) { test.That(t, numGroups, test.ShouldEqual, 0) },
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			called = true
			return nil, nil
		},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, called, test.ShouldBeFalse)
}

func TestParallelForEachCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := ParallelForEach(ctx, 100, func(i int) { atomic.AddInt32(&calls, 1) })
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, atomic.LoadInt32(&calls), test.ShouldEqual, 0)
}

func TestParallelForEach(t *testing.T) {
	out := make([]int, 257)
	err := ParallelForEach(context.Background(), len(out), func(i int) { out[i] = i * i })
	test.That(t, err, test.ShouldBeNil)
	for i, v := range out {
		test.That(t, v, test.ShouldEqual, i*i)
	}
}
