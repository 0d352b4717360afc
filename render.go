package main

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/model-collapse/coco-viz/coco"
	"github.com/model-collapse/coco-viz/overlay"
)

func renderAction(c *cli.Context, logger *zap.SugaredLogger) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}
	if cfg.DestDir == "" {
		return errors.Wrapf(coco.ErrConfiguration, "--%s is required", flagDestDir)
	}

	ds, err := coco.Load(cfg.JSONPath)
	if err != nil {
		return err
	}
	logger.Infow("loaded dataset", "path", cfg.JSONPath,
		"images", len(ds.Images), "annotations", len(ds.Annotations), "categories", len(ds.Categories))

	colors, err := buildColorMap(ds, cfg, logger)
	if err != nil {
		return err
	}

	dest, err := cfg.DestPath()
	if err != nil {
		return err
	}

	r := &overlay.Renderer{
		Dataset:    ds,
		Colors:     colors,
		DestDir:    dest,
		ImageRoot:  cfg.ImageRoot,
		ShowLabels: cfg.ShowLabels,
		Workers:    cfg.Workers,
		KeepGoing:  cfg.KeepGoing,
		Logger:     logger,
	}

	return r.Render(c.Context)
}

// buildColorMap returns the user supplied color map, checked against the
// dataset's categories, or a default one.
func buildColorMap(ds *coco.Dataset, cfg Config, logger *zap.SugaredLogger) (overlay.ColorMap, error) {
	raw, err := cfg.ColorMapJSON()
	if err != nil {
		return nil, err
	}

	if raw != "" {
		colors, err := overlay.ParseColorMap(raw, ds)
		if err != nil {
			return nil, err
		}
		if err := colors.Validate(ds.Categories); err != nil {
			return nil, err
		}
		return colors, nil
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	colors := overlay.DefaultColorMap(ds.Categories, overlay.Palette(), rand.New(rand.NewSource(seed)))
	if len(ds.Categories) > len(overlay.Palette()) {
		logger.Infow("more categories than palette colors, using random colors", "seed", seed)
	}
	logger.Debugw("color map", "colors", colors)

	return colors, nil
}
