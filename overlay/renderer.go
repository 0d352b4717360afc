package overlay

import (
	"context"
	"image"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/model-collapse/coco-viz/coco"
)

// Renderer writes one overlaid copy of every dataset image into DestDir.
//
// Images are independent of each other. With Workers above one they are
// rendered by a bounded pool; otherwise strictly one after another in listed
// order. By default the first failing image stops the run. KeepGoing switches
// to best effort: failures are logged, the remaining images are still written
// and every failure is returned combined.
type Renderer struct {
	Dataset *coco.Dataset
	Colors  ColorMap
	DestDir string
	// ImageRoot is prepended to every image file name. Empty means the
	// current directory.
	ImageRoot string
	// ShowLabels asks for category names to be drawn. Not implemented yet, the
	// output is the same either way.
	ShowLabels bool
	Workers    int
	KeepGoing  bool
	Logger     *zap.SugaredLogger
}

func (r *Renderer) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}

	return r.Logger
}

// Render processes every image of the dataset. The dataset is checked first
// and nothing is written when it is inconsistent.
func (r *Renderer) Render(ctx context.Context) error {
	log := r.logger()

	if err := r.Dataset.Validate(); err != nil {
		return err
	}

	if orphans := r.Dataset.OrphanAnnotations(); len(orphans) > 0 {
		return errors.Wrapf(coco.ErrLookup, "annotation %d references unknown image %d (%d orphan annotation(s))",
			orphans[0].ID, orphans[0].ImageID, len(orphans))
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	if workers > 1 {
		if err := uniqueOutputNames(r.Dataset.Images); err != nil {
			return err
		}
	}

	if err := EnsureDir(r.DestDir); err != nil {
		return err
	}

	if r.ShowLabels {
		log.Warn("label rendering is not implemented, boxes are drawn without labels")
	}

	byImage := r.Dataset.AnnotationsByImage()

	var (
		mu       sync.Mutex
		failures error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, img := range r.Dataset.Images {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			out, err := r.writeImage(img, byImage[img.ID])
			if err != nil {
				if !r.KeepGoing {
					return err
				}

				log.Errorw("skipping image", "id", img.ID, "file", img.FileName, "error", err)
				mu.Lock()
				failures = multierr.Append(failures, err)
				mu.Unlock()
				return nil
			}

			log.Debugw("wrote image", "id", img.ID, "annotations", len(byImage[img.ID]), "out", out)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	err = multierr.Append(err, failures)
	if err == nil {
		log.Infow("rendered dataset", "images", len(r.Dataset.Images), "dest", r.DestDir)
	}

	return err
}

func (r *Renderer) writeImage(img coco.Image, anns []coco.Annotation) (string, error) {
	name, err := OutputName(img.FileName)
	if err != nil {
		return "", err
	}

	res, err := r.RenderImage(img, anns)
	if err != nil {
		return "", err
	}

	out := filepath.Join(r.DestDir, name)
	if err := imaging.Save(res, out); err != nil {
		return "", errors.Wrapf(coco.NewResourceError(out, err), "image %d", img.ID)
	}

	return out, nil
}

// RenderImage reads one image and returns an opaque copy with the boxes of
// anns drawn over it. The source file is left untouched.
func (r *Renderer) RenderImage(img coco.Image, anns []coco.Annotation) (*image.NRGBA, error) {
	src := r.SourcePath(img)

	decoded, err := imaging.Open(src)
	if err != nil {
		return nil, errors.Wrapf(coco.NewResourceError(src, err), "image %d", img.ID)
	}

	base := Opaque(decoded)
	if b := base.Bounds(); b.Dx() != img.Width || b.Dy() != img.Height {
		r.logger().Debugw("image size differs from dataset entry",
			"id", img.ID, "declared", []int{img.Width, img.Height}, "actual", []int{b.Dx(), b.Dy()})
	}

	boxes := make([]Box, 0, len(anns))
	for _, a := range anns {
		clr, err := r.Colors.Resolve(a.CategoryID)
		if err != nil {
			return nil, errors.Wrapf(err, "image %d annotation %d", img.ID, a.ID)
		}
		boxes = append(boxes, Box{Rect: a.Corners(), Color: clr})
	}

	Composite(base, DrawBoxes(base.Bounds(), boxes))

	return base, nil
}

// SourcePath is where the image file of img is read from.
func (r *Renderer) SourcePath(img coco.Image) string {
	if r.ImageRoot == "" {
		return filepath.FromSlash(img.FileName)
	}

	return filepath.Join(r.ImageRoot, filepath.FromSlash(img.FileName))
}

// OutputName derives the written file name from an image's declared path:
// its last path element. Both '/' and '\' separate elements.
func OutputName(fileName string) (string, error) {
	p := strings.ReplaceAll(fileName, `\`, "/")
	if p == "" || strings.HasSuffix(p, "/") {
		return "", errors.Wrapf(coco.ErrFormat, "file name %q has no base name", fileName)
	}

	base := path.Base(p)
	if base == "." || base == ".." {
		return "", errors.Wrapf(coco.ErrFormat, "file name %q has no base name", fileName)
	}

	return base, nil
}

func uniqueOutputNames(images []coco.Image) error {
	seen := make(map[string]int, len(images))
	for _, img := range images {
		name, err := OutputName(img.FileName)
		if err != nil {
			// reported again when the image is processed
			continue
		}

		if prev, ok := seen[name]; ok {
			return errors.Wrapf(coco.ErrConfiguration, "images %d and %d both write %s", prev, img.ID, name)
		}
		seen[name] = img.ID
	}

	return nil
}
