// Package overlay assigns display colors to dataset categories and draws
// translucent bounding boxes over copies of the dataset images.
package overlay

import (
	"image"
	"image/color"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"golang.org/x/image/draw"
)

const (
	// FillAlpha is the opacity of the box interior.
	FillAlpha = 50
	// OutlineWidth is the width in pixels of the box border, drawn inside the box.
	OutlineWidth = 3
)

// Opaque copies src into a new image whose every pixel has full alpha. The
// color channels of translucent source pixels are kept as they are.
func Opaque(src image.Image) *image.NRGBA {
	b := src.Bounds()
	base := image.NewNRGBA(b)
	draw.Draw(base, b, src, b.Min, draw.Src)

	for i := 3; i < len(base.Pix); i += 4 {
		base.Pix[i] = 0xFF
	}

	return base
}

// Box is a rectangle to draw in a given color.
type Box struct {
	Rect  image.Rectangle
	Color color.NRGBA
}

// DrawBoxes paints boxes onto a new transparent layer with the given bounds.
// A box covers the pixels Rect.Min through Rect.Max inclusive. Its border is
// OutlineWidth pixels of fully opaque color and its interior is the same color
// at FillAlpha. Boxes are painted in order and each one replaces the layer
// pixels it covers, so a later box's translucent interior hides the border of
// an earlier box underneath it.
func DrawBoxes(bounds image.Rectangle, boxes []Box) *image.RGBA {
	layer := image.NewRGBA(bounds)
	scratch := image.NewRGBA(bounds)
	gc := draw2dimg.NewGraphicContext(scratch)
	gc.SetFillRule(draw2d.FillRuleEvenOdd)

	for _, b := range boxes {
		area := image.Rect(b.Rect.Min.X, b.Rect.Min.Y, b.Rect.Max.X+1, b.Rect.Max.Y+1).Intersect(bounds)
		if area.Empty() {
			continue
		}

		draw.Draw(scratch, area, image.Transparent, image.Point{}, draw.Src)
		drawBox(gc, b)
		draw.Draw(layer, area, scratch, area.Min, draw.Src)
	}

	return layer
}

func drawBox(gc *draw2dimg.GraphicContext, b Box) {
	x0, y0 := float64(b.Rect.Min.X), float64(b.Rect.Min.Y)
	x1, y1 := float64(b.Rect.Max.X+1), float64(b.Rect.Max.Y+1)

	const w = float64(OutlineWidth)

	opaque := b.Color
	opaque.A = 0xFF

	// the border eats the whole box
	if x1-x0 <= 2*w || y1-y0 <= 2*w {
		gc.BeginPath()
		draw2dkit.Rectangle(gc, x0, y0, x1, y1)
		gc.SetFillColor(opaque)
		gc.Fill()
		return
	}

	fill := b.Color
	fill.A = FillAlpha

	gc.BeginPath()
	draw2dkit.Rectangle(gc, x0+w, y0+w, x1-w, y1-w)
	gc.SetFillColor(fill)
	gc.Fill()

	// outer and inner outline filled even-odd leaves the frame
	gc.BeginPath()
	draw2dkit.Rectangle(gc, x0, y0, x1, y1)
	draw2dkit.Rectangle(gc, x0+w, y0+w, x1-w, y1-w)
	gc.SetFillColor(opaque)
	gc.Fill()
}

// Composite draws layer over base in place using standard alpha compositing.
func Composite(base *image.NRGBA, layer image.Image) {
	draw.Draw(base, base.Bounds(), layer, base.Bounds().Min, draw.Over)
}
