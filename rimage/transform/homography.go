// Package transform estimates the planar perspective transform (homography) relating two
// overlapping images from point correspondences, and applies it to point sets.
//
// A Homography maps a point of the source image pixel frame to the destination image pixel frame
// through H·[x, y, 1]ᵗ followed by perspective division.
package transform

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix, defined up to a non-zero scale, used to transform a plane from the
// perspective of one camera to the perspective of another.
type Homography struct {
	m *mat.Dense
}

// NewHomography creates a Homography from 9 values in row-major order.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	data := make([]float64, 9)
	copy(data, vals)
	return &Homography{mat.NewDense(3, 3, data)}, nil
}

// NewHomographyFromMatrix creates a Homography from a 3x3 matrix. The values are copied.
func NewHomographyFromMatrix(m mat.Matrix) (*Homography, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("homography matrix must be 3x3, got %dx%d", r, c)
	}
	return &Homography{mat.DenseCopyOf(m)}, nil
}

// IdentityHomography returns the homography that leaves every point in place.
func IdentityHomography() *Homography {
	return &Homography{eye(3)}
}

// At returns the value at [row][col].
func (h *Homography) At(row, col int) float64 {
	return h.m.At(row, col)
}

// Mat returns a copy of the underlying matrix.
func (h *Homography) Mat() *mat.Dense {
	return mat.DenseCopyOf(h.m)
}

// Values returns the 9 values in row-major order.
func (h *Homography) Values() []float64 {
	vals := make([]float64, 0, 9)
	for row := 0; row < 3; row++ {
		vals = append(vals, h.m.RawRowView(row)...)
	}
	return vals
}

// Apply transforms pt. The homogeneous result (x', y', w) is divided by w unless w is exactly
// zero: such a point is mapped to infinity and (x', y') is returned undivided.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	w := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	if w == 0 {
		return r2.Point{X: x, Y: y}
	}
	return r2.Point{X: x / w, Y: y / w}
}

// TransformPoints applies h to every point of pts, see Apply for points mapped to infinity.
// The input is not modified.
func TransformPoints(h *Homography, pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = h.Apply(pt)
	}
	return out
}

// Inverse returns the homography mapping destination points back to source points.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.m); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	return (&Homography{&inv}).Normalized(), nil
}

// Normalized returns a copy of h scaled so its bottom-right entry is 1. If that entry is 0 the
// copy is returned unscaled.
func (h *Homography) Normalized() *Homography {
	out := mat.DenseCopyOf(h.m)
	if w := out.At(2, 2); w != 0 {
		out.Scale(1/w, out)
	}
	return &Homography{out}
}

// maxConditionNumber bounds the 2-norm condition number of a usable homography. Collinear or
// otherwise rank deficient correspondences yield solutions far beyond it.
const maxConditionNumber = 1e12

// IsDegenerate reports whether h cannot be used as a transform: one of its entries is NaN or
// infinite, or it is singular or numerically close to singular. The test is on the condition
// number so it does not depend on the scale of h. The solver does not detect rank deficient input
// itself, so callers use this to validate its output.
func (h *Homography) IsDegenerate() bool {
	for _, v := range h.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return mat.Cond(h.m, 2) > maxConditionNumber
}

// MarshalJSON encodes h as 9 row-major values.
func (h *Homography) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Values())
}

// UnmarshalJSON decodes 9 row-major values.
func (h *Homography) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	decoded, err := NewHomography(vals)
	if err != nil {
		return err
	}
	*h = *decoded
	return nil
}

func (h *Homography) String() string {
	return fmt.Sprintf("%v", mat.Formatted(h.m, mat.Prefix("")))
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
