package transform

import (
	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// ReprojectionErrors returns, for every correspondence, the Euclidean distance between the
// transformed source point and its destination point.
func ReprojectionErrors(h *Homography, src, dst []r2.Point) ([]float64, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("point sets must have the same number of elements, got %d and %d", len(src), len(dst))
	}
	projected := TransformPoints(h, src)
	errs := make([]float64, len(src))
	for i, p := range projected {
		errs[i] = p.Sub(dst[i]).Norm()
	}
	return errs, nil
}

// ReprojectionSummary describes the distribution of reprojection errors of a fit.
type ReprojectionSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// SummarizeReprojection computes the summary statistics of errs.
func SummarizeReprojection(errs []float64) (ReprojectionSummary, error) {
	if len(errs) == 0 {
		return ReprojectionSummary{}, errors.New("no reprojection errors to summarize")
	}
	data := stats.Float64Data(errs)
	mean, err := data.Mean()
	if err != nil {
		return ReprojectionSummary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return ReprojectionSummary{}, err
	}
	stdDev, err := data.StandardDeviation()
	if err != nil {
		return ReprojectionSummary{}, err
	}
	maxErr, err := data.Max()
	if err != nil {
		return ReprojectionSummary{}, err
	}
	return ReprojectionSummary{
		Count:  len(errs),
		Mean:   mean,
		Median: median,
		StdDev: stdDev,
		Max:    maxErr,
	}, nil
}
