package transform

import "github.com/pkg/errors"

var (
	// ErrDegenerateInput is returned when a homography cannot be solved from the given points:
	// fewer than 4 correspondences, mismatched point sets or a point set with no spread.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrInsufficientConsensus is returned when the best consensus set found by RANSAC has fewer
	// than the 4 points needed to refit a homography.
	ErrInsufficientConsensus = errors.New("insufficient consensus")
)
