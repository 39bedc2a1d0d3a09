package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalizationMatrix returns the similarity transform that conditions pts before solving:
// the points are translated so their centroid is at the origin, then shifted by the minimum
// translated coordinate and divided by the pooled range s = max - min, where min and max are taken
// over both axes together. The normalized coordinates therefore span [0, 1] along the widest axis.
//
// This is a range based normalization, not the RMS distance scheme of Hartley's algorithm.
func NormalizationMatrix(pts []r2.Point) (*mat.Dense, error) {
	if len(pts) == 0 {
		return nil, errors.Wrap(ErrDegenerateInput, "cannot normalize an empty point set")
	}
	n := float64(len(pts))
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1 / n)

	centered := make([]float64, 0, 2*len(pts))
	for _, pt := range pts {
		centered = append(centered, pt.X-mu.X, pt.Y-mu.Y)
	}
	low, high := floats.Min(centered), floats.Max(centered)
	s := high - low
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return nil, errors.Wrapf(ErrDegenerateInput, "point set has no spread (range %v)", s)
	}

	meanMat := mat.NewDense(3, 3, []float64{
		1, 0, -mu.X,
		0, 1, -mu.Y,
		0, 0, 1,
	})
	shiftMat := mat.NewDense(3, 3, []float64{
		1, 0, -low,
		0, 1, -low,
		0, 0, 1,
	})
	scaleMat := mat.NewDense(3, 3, []float64{
		1 / s, 0, 0,
		0, 1 / s, 0,
		0, 0, 1,
	})
	var t mat.Dense
	t.Mul(scaleMat, shiftMat)
	t.Mul(&t, meanMat)
	return &t, nil
}

// normalizePoints computes the normalization matrix of pts and applies it to them.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	t, err := NormalizationMatrix(pts)
	if err != nil {
		return nil, nil, err
	}
	h := &Homography{t}
	return TransformPoints(h, pts), t, nil
}
