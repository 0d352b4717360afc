//go:build !preview

package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/model-collapse/coco-viz/coco"
)

// The preview server encodes with OpenCV and is only compiled with the
// "preview" build tag.
func serveAction(_ *cli.Context, _ *zap.SugaredLogger) error {
	return errors.Wrap(coco.ErrConfiguration, "serve is not available in this build, rebuild with -tags preview")
}
