package registration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/stitch/rimage/transform"
	"go.viam.com/stitch/vision/keypoints"
)

// Mode selects how the homography is fit on the retained matches.
type Mode string

const (
	// ModeDLT fits every retained match with the normalized DLT.
	ModeDLT = Mode("dlt")
	// ModeRANSAC fits the retained matches robustly.
	ModeRANSAC = Mode("ransac")
)

// default number of best matches kept per mode.
const (
	defaultTopKDLT    = 18
	defaultTopKRANSAC = 40
)

// Config contains the parameters of a registration between two images.
type Config struct {
	Matching keypoints.MatchingConfig `json:"matching"`
	// TopK is the number of lowest distance matches passed to the estimator.
	TopK   int                    `json:"top_k"`
	Mode   Mode                   `json:"mode"`
	RANSAC transform.RANSACConfig `json:"ransac"`
}

// DefaultConfig returns the configuration for the given mode: the 18 best matches for DLT, the 40
// best with a 2 pixel RANSAC threshold otherwise.
func DefaultConfig(mode Mode) Config {
	cfg := Config{
		Mode:   mode,
		RANSAC: transform.DefaultRANSACConfig(),
	}
	cfg.TopK = defaultTopK(mode)
	return cfg
}

func defaultTopK(mode Mode) int {
	if mode == ModeDLT {
		return defaultTopKDLT
	}
	return defaultTopKRANSAC
}

// LoadConfig loads a registration configuration from a json file. Omitted fields keep their
// default for the configured mode, which itself defaults to ransac.
func LoadConfig(file string) (*Config, error) {
	config := Config{RANSAC: transform.DefaultRANSACConfig()}
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	jsonParser.DisallowUnknownFields()
	if err := jsonParser.Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "cannot decode config file %q", file)
	}
	if config.Mode == "" {
		config.Mode = ModeRANSAC
	}
	if config.TopK == 0 {
		config.TopK = defaultTopK(config.Mode)
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the Config are valid.
func (config *Config) Validate(path string) error {
	var errs error
	switch config.Mode {
	case ModeDLT, ModeRANSAC:
	default:
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("mode should be %q or %q, got %q", ModeDLT, ModeRANSAC, config.Mode)))
	}
	if config.TopK < 4 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("top_k should be >= 4, got %d", config.TopK)))
	}
	if err := config.Matching.Validate(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(fmt.Sprintf("%s.matching", path), err))
	}
	if config.Mode == ModeRANSAC {
		errs = multierr.Append(errs, config.RANSAC.Validate(fmt.Sprintf("%s.ransac", path)))
	}
	return errs
}
