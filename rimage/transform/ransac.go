package transform

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/stitch/logging"
	"go.viam.com/stitch/utils"
	"go.viam.com/stitch/utils/matrix"
)

// RANSACConfig contains the parameters of the robust homography estimation.
type RANSACConfig struct {
	// Iterations is the fixed number of 4 point samples evaluated. There is no early exit.
	Iterations int `json:"iterations"`
	// Threshold is the largest deviation, in destination pixels, allowed on each axis for a
	// point to be an inlier.
	Threshold float64 `json:"threshold"`
	// Seed seeds the random source of the estimator.
	Seed uint64 `json:"seed"`
	// Parallel evaluates the iterations across workers. The result is identical to a serial run.
	Parallel bool `json:"parallel"`
}

// DefaultRANSACConfig returns 4000 iterations at a 2 pixel threshold with seed 0.
func DefaultRANSACConfig() RANSACConfig {
	return RANSACConfig{
		Iterations: 4000,
		Threshold:  2,
		Seed:       0,
	}
}

// Validate ensures all parts of the RANSACConfig are valid.
func (config *RANSACConfig) Validate(path string) error {
	var errs error
	if config.Iterations < 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("iterations should be >= 1")))
	}
	if config.Threshold < 0 || math.IsNaN(config.Threshold) || math.IsInf(config.Threshold, 0) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("threshold should be a finite value >= 0, got %v", config.Threshold)))
	}
	return errs
}

// RANSACResult is the outcome of a robust estimation.
type RANSACResult struct {
	// Homography is refit on every point of Inliers.
	Homography *Homography
	// Inliers holds the ascending indices of the best consensus set.
	Inliers []int
	// BestIteration is the first iteration that reached the best consensus.
	BestIteration int
	Iterations    int
}

// RANSACEstimator fits homographies robustly to correspondences containing outliers. It owns a
// seeded random source: two estimators built from the same config return identical results for
// the same input. Successive Estimate calls on one estimator continue the same random stream.
type RANSACEstimator struct {
	mu     sync.Mutex
	cfg    RANSACConfig
	source rand.Source
	logger logging.Logger

	// onIteration, when set, is called after each serial iteration with the best inlier count so
	// far.
	onIteration func(iteration, bestCount int)
}

// NewRANSACEstimator returns an estimator seeded with cfg.Seed.
func NewRANSACEstimator(cfg RANSACConfig, logger logging.Logger) (*RANSACEstimator, error) {
	if err := cfg.Validate("ransac"); err != nil {
		return nil, err
	}
	return &RANSACEstimator{
		cfg:    cfg,
		source: matrix.NewSeededSource(cfg.Seed),
		logger: logger,
	}, nil
}

// consensus is the best candidate found so far. It is shared by the workers of a parallel run and
// only updated through offer.
type consensus struct {
	mu        sync.Mutex
	iteration int
	inliers   []int
}

// offer keeps the candidate with more inliers. On equal counts the earlier iteration is kept, which
// is the candidate a serial loop replacing only on strictly greater counts ends up with.
func (c *consensus) offer(iteration int, inliers []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(inliers) > len(c.inliers) ||
		(len(inliers) == len(c.inliers) && len(inliers) > 0 && iteration < c.iteration) {
		c.iteration = iteration
		c.inliers = inliers
	}
}

func (c *consensus) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inliers)
}

// Estimate runs a fixed number of iterations. Each draws 4 distinct correspondences, fits a
// candidate with ComputeHomography and counts the points whose transformed source lies within the
// threshold of its destination on both axes. The homography is then refit on the largest
// consensus set. ErrInsufficientConsensus is returned when that set has fewer than 4 points.
func (re *RANSACEstimator) Estimate(ctx context.Context, src, dst []r2.Point) (*RANSACResult, error) {
	if len(src) != len(dst) {
		return nil, errors.Wrapf(ErrDegenerateInput, "point sets must have the same number of elements, got %d and %d",
			len(src), len(dst))
	}
	if len(src) < minCorrespondences {
		return nil, errors.Wrapf(ErrDegenerateInput, "need at least %d correspondences, got %d", minCorrespondences, len(src))
	}

	re.mu.Lock()
	defer re.mu.Unlock()
	start := time.Now()

	// every sample is drawn up front so serial and parallel runs see the same stream
	samples, err := matrix.SampleBatches(re.cfg.Iterations, minCorrespondences, len(src), re.source)
	if err != nil {
		return nil, err
	}

	best := &consensus{iteration: -1}
	if re.cfg.Parallel {
		err = utils.ParallelForEach(ctx, len(samples), func(i int) {
			best.offer(i, re.evaluate(samples[i], src, dst))
		})
	} else {
		for i, sample := range samples {
			if err = ctx.Err(); err != nil {
				break
			}
			best.offer(i, re.evaluate(sample, src, dst))
			if re.onIteration != nil {
				re.onIteration(i, best.count())
			}
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "ransac interrupted")
	}

	if len(best.inliers) < minCorrespondences {
		return nil, errors.Wrapf(ErrInsufficientConsensus, "best consensus has %d points, need %d",
			len(best.inliers), minCorrespondences)
	}

	inlierSrc := make([]r2.Point, len(best.inliers))
	inlierDst := make([]r2.Point, len(best.inliers))
	for i, idx := range best.inliers {
		inlierSrc[i] = src[idx]
		inlierDst[i] = dst[idx]
	}
	h, err := ComputeHomography(inlierSrc, inlierDst)
	if err != nil {
		return nil, errors.Wrap(err, "cannot refit homography on consensus set")
	}

	re.logger.CDebugw(ctx, "ransac finished",
		"points", len(src),
		"inliers", len(best.inliers),
		"best_iteration", best.iteration,
		"iterations", len(samples),
		"parallel", re.cfg.Parallel,
		"duration", time.Since(start),
	)
	return &RANSACResult{
		Homography:    h,
		Inliers:       best.inliers,
		BestIteration: best.iteration,
		Iterations:    len(samples),
	}, nil
}

// evaluate fits a candidate on the sampled correspondences and returns its inliers in ascending
// order. A sample that cannot be solved has no inliers.
func (re *RANSACEstimator) evaluate(sample []int, src, dst []r2.Point) []int {
	sampleSrc := make([]r2.Point, len(sample))
	sampleDst := make([]r2.Point, len(sample))
	for i, idx := range sample {
		sampleSrc[i] = src[idx]
		sampleDst[i] = dst[idx]
	}
	candidate, err := ComputeHomography(sampleSrc, sampleDst)
	if err != nil {
		return nil
	}
	return Inliers(candidate, src, dst, re.cfg.Threshold)
}

// Inliers returns the ascending indices i for which h maps src[i] within threshold of dst[i] on
// both axes independently: |dx| <= threshold and |dy| <= threshold. This is a box test, not a
// Euclidean radius. Points whose transform is NaN are never inliers.
func Inliers(h *Homography, src, dst []r2.Point, threshold float64) []int {
	projected := TransformPoints(h, src)
	inliers := make([]int, 0, len(src))
	for i, p := range projected {
		if math.Abs(p.X-dst[i].X) <= threshold && math.Abs(p.Y-dst[i].Y) <= threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// EstimateHomographyRANSAC runs a serial RANSAC estimation with the given threshold, iteration
// budget and seed and returns the refit homography and its inliers.
func EstimateHomographyRANSAC(src, dst []r2.Point, threshold float64, iterations int, seed uint64) (*Homography, []int, error) {
	estimator, err := NewRANSACEstimator(RANSACConfig{
		Iterations: iterations,
		Threshold:  threshold,
		Seed:       seed,
	}, logging.NewBlankLogger("ransac"))
	if err != nil {
		return nil, nil, err
	}
	res, err := estimator.Estimate(context.Background(), src, dst)
	if err != nil {
		return nil, nil, err
	}
	return res.Homography, res.Inliers, nil
}
