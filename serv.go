//go:build preview

package main

import (
	"encoding/json"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	http "github.com/valyala/fasthttp"

	"github.com/model-collapse/coco-viz/coco"
	"github.com/model-collapse/coco-viz/overlay"
)

type imageSummary struct {
	ID          int    `json:"id"`
	FileName    string `json:"file_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Annotations int    `json:"annotations"`
}

// previewServer renders dataset images on request. The dataset, its indexes
// and the color map are built once and only read afterwards.
type previewServer struct {
	renderer *overlay.Renderer
	images   map[int]coco.Image
	byImage  map[int][]coco.Annotation
	logger   *zap.SugaredLogger
}

func newPreviewServer(r *overlay.Renderer, logger *zap.SugaredLogger) *previewServer {
	return &previewServer{
		renderer: r,
		images:   r.Dataset.ImageIndex(),
		byImage:  r.Dataset.AnnotationsByImage(),
		logger:   logger,
	}
}

func (s *previewServer) handle(c *http.RequestCtx) {
	switch string(c.Path()) {
	case "/images":
		s.handleList(c)
	case "/image":
		s.handleImage(c)
	default:
		c.Error("not found", http.StatusNotFound)
	}
}

func (s *previewServer) handleList(c *http.RequestCtx) {
	list := make([]imageSummary, 0, len(s.renderer.Dataset.Images))
	for _, img := range s.renderer.Dataset.Images {
		list = append(list, imageSummary{
			ID:          img.ID,
			FileName:    img.FileName,
			Width:       img.Width,
			Height:      img.Height,
			Annotations: len(s.byImage[img.ID]),
		})
	}

	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Errorw("encoding image list", "error", err)
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}

	c.SetContentType("application/json")
	c.Write(data)
}

func (s *previewServer) handleImage(c *http.RequestCtx) {
	id, err := c.QueryArgs().GetUint("id")
	if err != nil {
		c.Error("id must be a non-negative integer", http.StatusBadRequest)
		return
	}

	img, ok := s.images[id]
	if !ok {
		c.Error("no such image", http.StatusNotFound)
		return
	}

	res, err := s.renderer.RenderImage(img, s.byImage[id])
	if err != nil {
		s.logger.Errorw("rendering preview", "id", id, "error", err)
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}

	mat, err := gocv.ImageToMatRGB(res)
	if err != nil {
		s.logger.Errorw("converting preview", "id", id, "error", err)
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	defer mat.Close()

	data, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Errorw("encoding preview", "id", id, "error", err)
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}

	c.SetContentType("image/jpeg")
	c.Write(data)
}

func serveAction(c *cli.Context, logger *zap.SugaredLogger) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}
	if cfg.Addr == "" {
		cfg.Addr = c.String(flagAddr)
	}

	ds, err := coco.Load(cfg.JSONPath)
	if err != nil {
		return err
	}

	colors, err := buildColorMap(ds, cfg, logger)
	if err != nil {
		return err
	}

	if orphans := ds.OrphanAnnotations(); len(orphans) > 0 {
		logger.Warnw("annotations reference unknown images", "count", len(orphans))
	}

	ps := newPreviewServer(&overlay.Renderer{
		Dataset:   ds,
		Colors:    colors,
		ImageRoot: cfg.ImageRoot,
		Logger:    logger,
	}, logger)

	srv := &http.Server{
		Handler: ps.handle,
		Name:    "coco-viz",
	}

	go func() {
		<-c.Context.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Errorw("shutting down", "error", err)
		}
	}()

	logger.Infow("serving previews", "addr", cfg.Addr, "images", len(ds.Images))
	return srv.ListenAndServe(cfg.Addr)
}
