// Command coco-viz draws the bounding boxes of a COCO-style dataset over copies
// of its images, one color per category, for checking annotation quality.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	// Flags.
	flagConfig     = "config"
	flagJSONPath   = "json-path"
	flagDestDir    = "dest-dir"
	flagImageRoot  = "image-root"
	flagShowLabels = "show-labels"
	flagColorMap   = "color-map"
	flagWorkers    = "workers"
	flagKeepGoing  = "keep-going"
	flagSeed       = "seed"
	flagDebug      = "debug"
	flagAddr       = "addr"
)

func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagConfig,
			Usage: "read defaults for every option from JSON `FILE`",
		},
		&cli.StringFlag{
			Name:  flagJSONPath,
			Usage: "dataset annotation `FILE`",
		},
		&cli.StringFlag{
			Name:  flagImageRoot,
			Usage: "directory image file names are relative to (default: working directory)",
		},
		&cli.StringFlag{
			Name:  flagColorMap,
			Usage: `color per category as a JSON object, like {"1": "#00BEEF"} or {"car": "#00BEEF"}`,
		},
		&cli.Int64Flag{
			Name:  flagSeed,
			Usage: "seed for the random colors used when there are more categories than palette entries",
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
	}
}

func newApp() *cli.App {
	logger := zap.NewNop().Sugar()

	return &cli.App{
		Name:  "coco-viz",
		Usage: "draw dataset bounding boxes over copies of the images",
		Flags: append(datasetFlags(),
			&cli.StringFlag{
				Name:  flagDestDir,
				Usage: "output `DIR`, created relative to the working directory",
			},
			&cli.BoolFlag{
				Name:  flagShowLabels,
				Usage: "draw category names (not implemented, output is unchanged)",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Value: 1,
				Usage: "images rendered at once",
			},
			&cli.BoolFlag{
				Name:  flagKeepGoing,
				Usage: "skip images that fail instead of stopping, exit non-zero at the end",
			},
		),
		Before: func(c *cli.Context) error {
			l, err := newLogger(c.Bool(flagDebug))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		After: func(c *cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Action: func(c *cli.Context) error {
			return renderAction(c, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve rendered previews over HTTP (needs a build with -tags preview)",
				Flags: append(datasetFlags(),
					&cli.StringFlag{
						Name:  flagAddr,
						Value: "0.0.0.0:8093",
						Usage: "listen address",
					},
				),
				Before: func(c *cli.Context) error {
					if !c.Bool(flagDebug) {
						return nil
					}
					l, err := newLogger(true)
					if err != nil {
						return err
					}
					logger = l
					return nil
				},
				Action: func(c *cli.Context) error {
					return serveAction(c, logger)
				},
			},
		},
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		l, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}

	return l.Sugar().Named("coco-viz"), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "coco-viz: %v\n", err)
		stop()
		os.Exit(1)
	}
}
