package registration

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/stitch/vision/keypoints"
	"go.viam.com/stitch/vision/keypoints/descriptors"
)

// Features holds the output of a feature extractor for one image: keypoint coordinates and the
// binary descriptors computed at them, index-aligned.
type Features struct {
	KeyPoints   keypoints.KeyPoints     `json:"keypoints"`
	Descriptors descriptors.Descriptors `json:"descriptors"`
}

// LoadFeatures loads a features file. Keypoints are [x, y] pairs and descriptors hex strings.
func LoadFeatures(file string) (*Features, error) {
	var features Features
	filePath := filepath.Clean(file)
	featuresFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(featuresFile.Close)
	if err := json.NewDecoder(featuresFile).Decode(&features); err != nil {
		return nil, errors.Wrapf(err, "cannot decode features file %q", file)
	}
	if err := features.Validate(file); err != nil {
		return nil, err
	}
	return &features, nil
}

// Validate ensures the keypoints and descriptors line up and all descriptors share one length.
func (f *Features) Validate(path string) error {
	var errs error
	if len(f.KeyPoints) != len(f.Descriptors) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("got %d keypoints but %d descriptors", len(f.KeyPoints), len(f.Descriptors))))
	}
	if _, err := f.Descriptors.BitLength(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	for i, kp := range f.KeyPoints {
		if math.IsNaN(kp.X) || math.IsNaN(kp.Y) || math.IsInf(kp.X, 0) || math.IsInf(kp.Y, 0) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("keypoint %d is not finite: %v", i, kp)))
		}
	}
	return errs
}
