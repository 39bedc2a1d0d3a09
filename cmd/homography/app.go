package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/stitch/logging"
	"go.viam.com/stitch/vision/keypoints"
	"go.viam.com/stitch/vision/registration"
)

const (
	// Flags.
	flagDebug      = "debug"
	flagLogLevel   = "log-level"
	flagLogFile    = "log-file"
	flagFirst      = "first"
	flagSecond     = "second"
	flagConfig     = "config"
	flagMode       = "mode"
	flagTopK       = "top-k"
	flagMaxDist    = "max-dist"
	flagThreshold  = "threshold"
	flagIterations = "iterations"
	flagSeed       = "seed"
	flagParallel   = "parallel"
)

func featureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:     flagFirst,
			Usage:    "features `FILE` of the image to register",
			Required: true,
		},
		&cli.PathFlag{
			Name:     flagSecond,
			Usage:    "features `FILE` of the reference image",
			Required: true,
		},
	}
}

func newApp() *cli.App {
	var (
		logger  logging.Logger
		logFile *lumberjack.Logger
	)

	return &cli.App{
		Name:  "homography",
		Usage: "match binary descriptors of two images and estimate the homography relating them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging of the matching and estimation stages",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to the rotated `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "minimum level of the logs written to stderr: debug, info, warn or error",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.LevelFromString(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			logger = logging.NewBlankLogger("homography")
			logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
			if c.IsSet(flagLogFile) {
				logFile = &lumberjack.Logger{
					Filename:   c.Path(flagLogFile),
					MaxSize:    10,
					MaxBackups: 2,
				}
				logger.AddAppender(logging.NewWriterAppender(logFile))
			}
			logger.SetLevel(level)
			logging.ReplaceGlobal(logger)
			if c.Bool(flagDebug) {
				c.Context = logging.EnableDebugMode(c.Context)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logFile == nil {
				return nil
			}
			return logFile.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "match",
				Usage: "print the best descriptor matches between two feature files",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  flagTopK,
						Usage: "number of matches to print, 0 prints all of them",
					},
					&cli.IntFlag{
						Name:  flagMaxDist,
						Usage: "drop matches whose distance is not below this value, 0 keeps all of them",
					},
				}, featureFlags()...),
				Action: func(c *cli.Context) error {
					return matchAction(c, logger)
				},
			},
			{
				Name:  "estimate",
				Usage: "estimate the homography mapping the first image onto the second",
				Flags: append([]cli.Flag{
					&cli.PathFlag{
						Name:  flagConfig,
						Usage: "load registration configuration from `FILE`",
					},
					&cli.StringFlag{
						Name:  flagMode,
						Usage: "estimation mode, dlt or ransac",
					},
					&cli.IntFlag{
						Name:  flagTopK,
						Usage: "number of best matches passed to the estimator",
					},
					&cli.IntFlag{
						Name:  flagMaxDist,
						Usage: "drop matches whose distance is not below this value",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "ransac inlier threshold in pixels",
					},
					&cli.IntFlag{
						Name:  flagIterations,
						Usage: "ransac iterations",
					},
					&cli.Uint64Flag{
						Name:  flagSeed,
						Usage: "ransac random seed",
					},
					&cli.BoolFlag{
						Name:  flagParallel,
						Usage: "evaluate ransac iterations in parallel",
					},
				}, featureFlags()...),
				Action: func(c *cli.Context) error {
					return estimateAction(c, logger)
				},
			},
			{
				Name:  "schema",
				Usage: "print the json schema of the registration configuration file",
				Action: func(c *cli.Context) error {
					out, err := json.MarshalIndent(registration.ConfigSchema(), "", "  ")
					if err != nil {
						return err
					}
					printf(c.App.Writer, "%s", out)
					return nil
				},
			},
		},
	}
}

// loadFeaturePair reads both feature files concurrently.
func loadFeaturePair(c *cli.Context) (*registration.Features, *registration.Features, error) {
	var first, second *registration.Features
	var group errgroup.Group
	group.Go(func() error {
		var err error
		first, err = registration.LoadFeatures(c.Path(flagFirst))
		return err
	})
	group.Go(func() error {
		var err error
		second, err = registration.LoadFeatures(c.Path(flagSecond))
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func matchAction(c *cli.Context, logger logging.Logger) error {
	first, second, err := loadFeaturePair(c)
	if err != nil {
		return err
	}
	cfg := keypoints.MatchingConfig{MaxDist: c.Int(flagMaxDist)}
	if err := cfg.Validate(); err != nil {
		return err
	}
	matches, err := keypoints.MatchKeypoints(c.Context, first.Descriptors, second.Descriptors, &cfg, logger)
	if err != nil {
		return err
	}
	if k := c.Int(flagTopK); k > 0 {
		matches = keypoints.TopMatches(matches, k)
	}
	src, dst, err := keypoints.MatchedPoints(matches, first.KeyPoints, second.KeyPoints)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", matchTable(matches, src, dst))
	return nil
}

// matchTable renders one row per match with the positions of both keypoints.
func matchTable(matches []keypoints.Match, src, dst []r2.Point) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Query", "Train", "Distance", "Query point", "Train point"})
	for i, m := range matches {
		t.AppendRow(table.Row{
			i,
			m.QueryIdx,
			m.TrainIdx,
			m.Distance,
			fmt.Sprintf("(%.1f, %.1f)", src[i].X, src[i].Y),
			fmt.Sprintf("(%.1f, %.1f)", dst[i].X, dst[i].Y),
		})
	}
	return t.Render()
}

// estimateConfig starts from the config file, or the defaults of the requested mode, and applies
// the flags that were set.
func estimateConfig(c *cli.Context) (*registration.Config, error) {
	var cfg registration.Config
	if c.IsSet(flagConfig) {
		loaded, err := registration.LoadConfig(c.Path(flagConfig))
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	} else {
		mode := registration.ModeRANSAC
		if c.IsSet(flagMode) {
			mode = registration.Mode(c.String(flagMode))
		}
		cfg = registration.DefaultConfig(mode)
	}
	if c.IsSet(flagMode) {
		cfg.Mode = registration.Mode(c.String(flagMode))
	}
	if c.IsSet(flagTopK) {
		cfg.TopK = c.Int(flagTopK)
	}
	if c.IsSet(flagMaxDist) {
		cfg.Matching.MaxDist = c.Int(flagMaxDist)
	}
	if c.IsSet(flagThreshold) {
		cfg.RANSAC.Threshold = c.Float64(flagThreshold)
	}
	if c.IsSet(flagIterations) {
		cfg.RANSAC.Iterations = c.Int(flagIterations)
	}
	if c.IsSet(flagSeed) {
		cfg.RANSAC.Seed = c.Uint64(flagSeed)
	}
	if c.IsSet(flagParallel) {
		cfg.RANSAC.Parallel = c.Bool(flagParallel)
	}
	if err := cfg.Validate("flags"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func estimateAction(c *cli.Context, logger logging.Logger) error {
	first, second, err := loadFeaturePair(c)
	if err != nil {
		return err
	}
	cfg, err := estimateConfig(c)
	if err != nil {
		return err
	}
	res, err := registration.Register(c.Context, first, second, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "registration failed")
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

func printf(w io.Writer, format string, a ...interface{}) {
	// no need to care about the errors here
	//nolint:errcheck
	_, _ = fmt.Fprintf(w, format+"\n", a...)
}
