// Package registration estimates the homography relating two overlapping images from the
// keypoints and binary descriptors extracted on each of them.
package registration

import (
	"context"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/stitch/logging"
	"go.viam.com/stitch/rimage/transform"
	"go.viam.com/stitch/vision/keypoints"
)

// Result is the outcome of registering a first image onto a second one.
type Result struct {
	Mode Mode `json:"mode"`
	// Matches are the retained matches, by ascending distance. Inliers index into it.
	Matches    []keypoints.Match     `json:"matches"`
	Homography *transform.Homography `json:"homography"`
	Inliers    []int                 `json:"inliers"`
	// Reprojection summarizes the reprojection errors of the inliers under Homography.
	Reprojection transform.ReprojectionSummary `json:"reprojection"`
}

// InlierMatches returns the retained matches that agree with the homography.
func (r *Result) InlierMatches() []keypoints.Match {
	return lo.Map(r.Inliers, func(idx, _ int) keypoints.Match { return r.Matches[idx] })
}

// Register matches the descriptors of first against second, keeps the cfg.TopK best matches and
// fits the homography mapping first's pixel frame onto second's with the configured mode.
func Register(ctx context.Context, first, second *Features, cfg *Config, logger logging.Logger) (*Result, error) {
	if err := first.Validate("first"); err != nil {
		return nil, err
	}
	if err := second.Validate("second"); err != nil {
		return nil, err
	}
	if err := cfg.Validate("registration"); err != nil {
		return nil, err
	}
	start := time.Now()

	matches, err := keypoints.MatchKeypoints(ctx, first.Descriptors, second.Descriptors, &cfg.Matching, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cannot match descriptors")
	}
	matches = keypoints.TopMatches(matches, cfg.TopK)
	logger.CDebugw(ctx, "retained best matches", "top_k", cfg.TopK, "retained", len(matches))
	src, dst, err := keypoints.MatchedPoints(matches, first.KeyPoints, second.KeyPoints)
	if err != nil {
		return nil, err
	}

	var (
		h       *transform.Homography
		inliers []int
	)
	switch cfg.Mode {
	case ModeDLT:
		h, err = transform.ComputeHomography(src, dst)
		if err != nil {
			return nil, err
		}
		inliers = lo.Range(len(src))
	case ModeRANSAC:
		estimator, err := transform.NewRANSACEstimator(cfg.RANSAC, logger.Sublogger("ransac"))
		if err != nil {
			return nil, err
		}
		res, err := estimator.Estimate(ctx, src, dst)
		if err != nil {
			return nil, err
		}
		h, inliers = res.Homography, res.Inliers
	default:
		return nil, errors.Errorf("unknown registration mode %q", cfg.Mode)
	}

	if h.IsDegenerate() {
		logger.Warnw("estimated homography is degenerate", "matches", len(matches))
	}
	summary, err := transform.SummarizeReprojection(reprojectionErrors(h, src, dst, inliers))
	if err != nil {
		return nil, err
	}

	logger.Infow("registered images",
		"mode", cfg.Mode,
		"matches", len(matches),
		"inliers", len(inliers),
		"mean_error", summary.Mean,
		"duration", time.Since(start),
	)
	return &Result{
		Mode:         cfg.Mode,
		Matches:      matches,
		Homography:   h,
		Inliers:      inliers,
		Reprojection: summary,
	}, nil
}

func reprojectionErrors(h *transform.Homography, src, dst []r2.Point, inliers []int) []float64 {
	inlierSrc := lo.Map(inliers, func(idx, _ int) r2.Point { return src[idx] })
	inlierDst := lo.Map(inliers, func(idx, _ int) r2.Point { return dst[idx] })
	// both sides have the same length
	errs, _ := transform.ReprojectionErrors(h, inlierSrc, inlierDst)
	return errs
}
