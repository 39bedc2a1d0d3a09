package transform

import (
	"context"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stitch/logging"
)

// correspondencesWithOutliers returns the 10 general position points mapped through testHomography
// followed by 2 correspondences whose destinations are pushed far off the model.
func correspondencesWithOutliers(t *testing.T) ([]r2.Point, []r2.Point) {
	t.Helper()
	h := testHomography(t)
	outliers := []r2.Point{{X: 60, Y: 150}, {X: 220, Y: 300}}

	src := append(append([]r2.Point{}, generalPositionPoints...), outliers...)
	dst := TransformPoints(h, src)
	for i := len(generalPositionPoints); i < len(dst); i++ {
		dst[i] = dst[i].Add(r2.Point{X: 60, Y: -45})
	}
	return src, dst
}

func TestRANSACRejectsOutliers(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src, dst := correspondencesWithOutliers(t)

	estimator, err := NewRANSACEstimator(RANSACConfig{Iterations: 4000, Threshold: 1, Seed: 0}, logger)
	test.That(t, err, test.ShouldBeNil)
	res, err := estimator.Estimate(context.Background(), src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Inliers, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	test.That(t, res.Iterations, test.ShouldEqual, 4000)
	test.That(t, res.BestIteration, test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, res.Homography.IsDegenerate(), test.ShouldBeFalse)
	assertSameHomography(t, res.Homography, testHomography(t), 1e-6)

	errs, err := ReprojectionErrors(res.Homography, src[:10], dst[:10])
	test.That(t, err, test.ShouldBeNil)
	for _, e := range errs {
		test.That(t, e, test.ShouldBeLessThan, 1e-6)
	}
}

func TestRANSACNoisyInliers(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src, dst := correspondencesWithOutliers(t)
	// small deterministic jitter on the inliers
	jitter := []r2.Point{
		{X: 0.02, Y: -0.01}, {X: -0.015, Y: 0.02}, {X: 0.01, Y: 0.01}, {X: -0.02, Y: -0.005},
		{X: 0.005, Y: 0.015}, {X: -0.01, Y: -0.02}, {X: 0.02, Y: 0.005}, {X: -0.005, Y: 0.01},
		{X: 0.015, Y: -0.015}, {X: -0.02, Y: 0.02},
	}
	for i, j := range jitter {
		dst[i] = dst[i].Add(j)
	}

	estimator, err := NewRANSACEstimator(RANSACConfig{Iterations: 1000, Threshold: 1, Seed: 7}, logger)
	test.That(t, err, test.ShouldBeNil)
	res, err := estimator.Estimate(context.Background(), src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Inliers, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	errs, err := ReprojectionErrors(res.Homography, src[:10], dst[:10])
	test.That(t, err, test.ShouldBeNil)
	summary, err := SummarizeReprojection(errs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Max, test.ShouldBeLessThan, 0.5)
}

func TestRANSACDeterminism(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src, dst := correspondencesWithOutliers(t)
	cfg := RANSACConfig{Iterations: 500, Threshold: 1, Seed: 42}

	run := func(cfg RANSACConfig) *RANSACResult {
		estimator, err := NewRANSACEstimator(cfg, logger)
		test.That(t, err, test.ShouldBeNil)
		res, err := estimator.Estimate(context.Background(), src, dst)
		test.That(t, err, test.ShouldBeNil)
		return res
	}

	first := run(cfg)
	second := run(cfg)
	test.That(t, second.Inliers, test.ShouldResemble, first.Inliers)
	test.That(t, second.BestIteration, test.ShouldEqual, first.BestIteration)
	test.That(t, second.Homography.Values(), test.ShouldResemble, first.Homography.Values())

	t.Run("parallel matches serial", func(t *testing.T) {
		parallelCfg := cfg
		parallelCfg.Parallel = true
		parallel := run(parallelCfg)
		test.That(t, parallel.Inliers, test.ShouldResemble, first.Inliers)
		test.That(t, parallel.BestIteration, test.ShouldEqual, first.BestIteration)
		test.That(t, parallel.Homography.Values(), test.ShouldResemble, first.Homography.Values())
	})

	t.Run("convenience function", func(t *testing.T) {
		h, inliers, err := EstimateHomographyRANSAC(src, dst, cfg.Threshold, cfg.Iterations, cfg.Seed)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, inliers, test.ShouldResemble, first.Inliers)
		test.That(t, h.Values(), test.ShouldResemble, first.Homography.Values())
	})
}

func TestRANSACBestCountNeverDecreases(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src, dst := correspondencesWithOutliers(t)

	estimator, err := NewRANSACEstimator(RANSACConfig{Iterations: 200, Threshold: 1, Seed: 3}, logger)
	test.That(t, err, test.ShouldBeNil)
	var counts []int
	estimator.onIteration = func(iteration, bestCount int) {
		test.That(t, iteration, test.ShouldEqual, len(counts))
		counts = append(counts, bestCount)
	}
	res, err := estimator.Estimate(context.Background(), src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, counts, test.ShouldHaveLength, 200)
	for i := 1; i < len(counts); i++ {
		test.That(t, counts[i], test.ShouldBeGreaterThanOrEqualTo, counts[i-1])
	}
	test.That(t, counts[len(counts)-1], test.ShouldEqual, len(res.Inliers))
	// the reported iteration is the first to reach the final count
	test.That(t, counts[res.BestIteration], test.ShouldEqual, len(res.Inliers))
	if res.BestIteration > 0 {
		test.That(t, counts[res.BestIteration-1], test.ShouldBeLessThan, len(res.Inliers))
	}
}

func TestRANSACInsufficientConsensus(t *testing.T) {
	logger := logging.NewTestLogger(t)
	// every sample of identical source points fails to normalize, so no candidate has inliers
	src := make([]r2.Point, 6)
	for i := range src {
		src[i] = r2.Point{X: 5, Y: 5}
	}
	dst := generalPositionPoints[:6]

	estimator, err := NewRANSACEstimator(RANSACConfig{Iterations: 50, Threshold: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = estimator.Estimate(context.Background(), src, dst)
	test.That(t, errors.Is(err, ErrInsufficientConsensus), test.ShouldBeTrue)

	_, _, err = EstimateHomographyRANSAC(src, dst, 1, 50, 0)
	test.That(t, errors.Is(err, ErrInsufficientConsensus), test.ShouldBeTrue)
}

func TestRANSACInputErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	estimator, err := NewRANSACEstimator(DefaultRANSACConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = estimator.Estimate(context.Background(), generalPositionPoints[:3], generalPositionPoints[:3])
	test.That(t, errors.Is(err, ErrDegenerateInput), test.ShouldBeTrue)

	_, err = estimator.Estimate(context.Background(), generalPositionPoints[:6], generalPositionPoints[:5])
	test.That(t, errors.Is(err, ErrDegenerateInput), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = estimator.Estimate(ctx, generalPositionPoints, generalPositionPoints)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestRANSACConfigValidate(t *testing.T) {
	cfg := DefaultRANSACConfig()
	test.That(t, cfg.Iterations, test.ShouldEqual, 4000)
	test.That(t, cfg.Threshold, test.ShouldEqual, 2.)
	test.That(t, cfg.Validate("ransac"), test.ShouldBeNil)

	cfg.Iterations = 0
	cfg.Threshold = -1
	err := cfg.Validate("ransac")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "iterations should be >= 1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "threshold should be a finite value >= 0")

	_, err = NewRANSACEstimator(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInliersBoxTest(t *testing.T) {
	src := []r2.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}}
	dst := []r2.Point{
		{X: 1, Y: 1},      // corner of the box, Euclidean distance sqrt(2)
		{X: -1, Y: 0.5},   // on the edge
		{X: 1.01, Y: 0},   // just outside on x
		{X: 0.2, Y: -1.5}, // outside on y
	}
	test.That(t, Inliers(IdentityHomography(), src, dst, 1), test.ShouldResemble, []int{0, 1})
	test.That(t, Inliers(IdentityHomography(), nil, nil, 1), test.ShouldBeEmpty)
}
