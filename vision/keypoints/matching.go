package keypoints

import (
	"cmp"
	"context"
	"slices"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/stitch/logging"
	"go.viam.com/stitch/vision/keypoints/descriptors"
)

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	// MaxDist drops matches whose distance is not below it. 0 keeps every match.
	MaxDist int `json:"max_dist"`
}

// Validate ensures all parts of the MatchingConfig are valid.
func (config *MatchingConfig) Validate() error {
	if config.MaxDist < 0 {
		return errors.Errorf("max_dist should be >= 0, got %d", config.MaxDist)
	}
	return nil
}

// Match links the descriptor at QueryIdx in the first set to its nearest descriptor at TrainIdx
// in the second set.
type Match struct {
	QueryIdx int `json:"query_idx"`
	TrainIdx int `json:"train_idx"`
	Distance int `json:"distance"`
}

// MatchDescriptors performs brute-force nearest neighbor matching of every descriptor of desc1
// against desc2 with the Hamming distance. The result has exactly one match per desc1 index, in
// desc1 order. Ties go to the lowest desc2 index. Several queries may share a train index.
// An empty input on either side yields an empty result.
func MatchDescriptors(ctx context.Context, desc1, desc2 descriptors.Descriptors) ([]Match, error) {
	if len(desc1) == 0 || len(desc2) == 0 {
		return []Match{}, nil
	}
	distances, err := descriptors.PairwiseHammingDistances(ctx, desc1, desc2)
	if err != nil {
		return nil, err
	}
	indices2 := getArgMinDistancesPerRow(distances)
	matches := make([]Match, len(desc1))
	for i, j := range indices2 {
		matches[i] = Match{QueryIdx: i, TrainIdx: j, Distance: distances[i][j]}
	}
	return matches, nil
}

// getArgMinDistancesPerRow returns the column of the first minimum of every row.
func getArgMinDistancesPerRow(distances [][]int) []int {
	indices := make([]int, len(distances))
	row := make([]float64, 0)
	for i, distRow := range distances {
		row = row[:0]
		for _, d := range distRow {
			row = append(row, float64(d))
		}
		indices[i] = floats.MinIdx(row)
	}
	return indices
}

// SortMatches sorts matches by ascending distance in place. Equal distances keep their order.
func SortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}

// TopMatches returns the first k matches, or all of them if there are fewer than k.
func TopMatches(matches []Match, k int) []Match {
	if k < 0 {
		k = 0
	}
	return matches[:min(k, len(matches))]
}

// FilterByMaxDistance keeps the matches with a distance strictly below maxDist. A maxDist <= 0
// keeps everything.
func FilterByMaxDistance(matches []Match, maxDist int) []Match {
	if maxDist <= 0 {
		return matches
	}
	return lo.Filter(matches, func(m Match, _ int) bool {
		return m.Distance < maxDist
	})
}

// MatchKeypoints matches two descriptor sets, applies cfg and returns the matches ranked by
// ascending distance.
func MatchKeypoints(
	ctx context.Context,
	desc1, desc2 descriptors.Descriptors,
	cfg *MatchingConfig,
	logger logging.Logger,
) ([]Match, error) {
	matches, err := MatchDescriptors(ctx, desc1, desc2)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		matches = FilterByMaxDistance(matches, cfg.MaxDist)
	}
	SortMatches(matches)
	logger.CDebugw(ctx, "matched descriptors", "queries", len(desc1), "train", len(desc2), "kept", len(matches))
	return matches, nil
}

// MatchedPoints takes the matches and the keypoints and returns the corresponding index-aligned
// point sets: src[i] is the query keypoint of matches[i], dst[i] its train keypoint.
func MatchedPoints(matches []Match, kps1, kps2 KeyPoints) ([]r2.Point, []r2.Point, error) {
	for i, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kps1) {
			return nil, nil, errors.Errorf("match %d has query index %d outside of %d keypoints", i, m.QueryIdx, len(kps1))
		}
		if m.TrainIdx < 0 || m.TrainIdx >= len(kps2) {
			return nil, nil, errors.Errorf("match %d has train index %d outside of %d keypoints", i, m.TrainIdx, len(kps2))
		}
	}
	src := lo.Map(matches, func(m Match, _ int) r2.Point { return kps1[m.QueryIdx] })
	dst := lo.Map(matches, func(m Match, _ int) r2.Point { return kps2[m.TrainIdx] })
	return src, dst, nil
}
