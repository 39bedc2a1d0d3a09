package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestReprojectionErrors(t *testing.T) {
	src := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	dst := []r2.Point{{X: 3, Y: 4}, {X: 1, Y: 1}, {X: 2, Y: 3}}

	errs, err := ReprojectionErrors(IdentityHomography(), src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errs, test.ShouldResemble, []float64{5, 0, 1})

	_, err = ReprojectionErrors(IdentityHomography(), src, dst[:2])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSummarizeReprojection(t *testing.T) {
	summary, err := SummarizeReprojection([]float64{5, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Count, test.ShouldEqual, 3)
	test.That(t, summary.Mean, test.ShouldAlmostEqual, 2.)
	test.That(t, summary.Median, test.ShouldAlmostEqual, 1.)
	test.That(t, summary.Max, test.ShouldAlmostEqual, 5.)
	// population standard deviation of {5, 0, 1}
	test.That(t, summary.StdDev, test.ShouldAlmostEqual, 2.160246899469287, 1e-12)

	_, err = SummarizeReprojection(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
