package transform

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// minCorrespondences is the number of point pairs that fixes the 8 degrees of freedom of a
// homography.
const minCorrespondences = 4

// DesignMatrix builds the 2N x 9 DLT system for correspondences src[i] -> dst[i]. Each pair
// (x, y) -> (x', y') contributes the rows
//
//	[x, y, 1, 0, 0, 0, -x*x', -y*x', -x']
//	[0, 0, 0, x, y, 1, -x*y', -y*y', -y']
func DesignMatrix(src, dst []r2.Point) *mat.Dense {
	a := mat.NewDense(2*len(src), 9, nil)
	for i := range src {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * xp, -y * xp, -xp})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * yp, -y * yp, -yp})
	}
	return a
}

// ComputeHomography computes the homography mapping src onto dst with the normalized direct
// linear transform. Both point sets are index-aligned and hold at least 4 points.
//
// With exactly 4 correspondences in general position the fit is exact. With more it minimizes
// the algebraic residual of the design matrix, not the geometric reprojection error.
//
// Collinear or otherwise rank deficient input is not detected; the result may then contain NaN or
// be singular, which callers check with Homography.IsDegenerate.
func ComputeHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Wrapf(ErrDegenerateInput, "point sets must have the same number of elements, got %d and %d",
			len(src), len(dst))
	}
	if len(src) < minCorrespondences {
		return nil, errors.Wrapf(ErrDegenerateInput, "need at least %d correspondences, got %d", minCorrespondences, len(src))
	}

	normSrc, tSrc, err := normalizePoints(src)
	if err != nil {
		return nil, errors.Wrap(err, "cannot normalize source points")
	}
	normDst, tDst, err := normalizePoints(dst)
	if err != nil {
		return nil, errors.Wrap(err, "cannot normalize destination points")
	}

	a := DesignMatrix(normSrc, normDst)
	h, err := smallestRightSingularVector(a)
	if err != nil {
		return nil, err
	}
	// the vector is only defined up to scale; fix its last component to 1
	last := h[len(h)-1]
	for i := range h {
		h[i] /= last
	}
	hNorm := mat.NewDense(3, 3, h)

	// back to the original frames: tDst^-1 @ hNorm @ tSrc
	var tDstInv mat.Dense
	if err := tDstInv.Inverse(tDst); err != nil {
		return nil, errors.Wrap(ErrDegenerateInput, err.Error())
	}
	var out mat.Dense
	out.Mul(&tDstInv, hNorm)
	out.Mul(&out, tSrc)

	return (&Homography{&out}).Normalized(), nil
}

// smallestRightSingularVector returns the right singular vector of a paired with its smallest
// singular value. For a design matrix with fewer rows than columns this is a null space vector.
func smallestRightSingularVector(a *mat.Dense) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return nil, errors.Wrap(ErrDegenerateInput, "singular value decomposition failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, nCols := v.Dims()
	return mat.Col(nil, nCols-1, &v), nil
}
