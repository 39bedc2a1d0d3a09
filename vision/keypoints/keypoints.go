// Package keypoints contains the keypoint sets produced by a feature extractor and the
// brute-force binary descriptor matcher that pairs them across two images.
package keypoints

import (
	"encoding/json"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// KeyPoints is an ordered set of keypoint coordinates, index-aligned with its descriptors.
type KeyPoints []r2.Point

// MarshalJSON encodes the keypoints as a list of [x, y] pairs.
func (kps KeyPoints) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(kps))
	for i, kp := range kps {
		pairs[i] = [2]float64{kp.X, kp.Y}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes a list of [x, y] pairs.
func (kps *KeyPoints) UnmarshalJSON(data []byte) error {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(KeyPoints, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return errors.Errorf("keypoint %d should have 2 coordinates, has %d", i, len(p))
		}
		out[i] = r2.Point{X: p[0], Y: p[1]}
	}
	*kps = out
	return nil
}
