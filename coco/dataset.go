// Package coco models COCO-style object-detection datasets: categories, images
// and bounding-box annotations, as read from a single JSON file.
package coco

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Category is a labeled class of detectable object.
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	SuperCategory string `json:"supercategory,omitempty"`
}

// BBox is an axis aligned box stored as origin plus size: [x, y, width, height].
type BBox [4]float64

// Annotation is one bounding-box instance of a category on one image.
type Annotation struct {
	ID           int             `json:"id"`
	ImageID      int             `json:"image_id"`
	CategoryID   int             `json:"category_id"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
	BBox         BBox            `json:"bbox"`
	Ignore       int             `json:"ignore"`
	IsCrowd      int             `json:"iscrowd"`
	Area         float64         `json:"area"`
}

// Corners converts the [x, y, w, h] box to the two-corner form [x, y, x+w, y+h].
// Fractional coordinates are truncated toward zero.
func (a Annotation) Corners() image.Rectangle {
	x, y, w, h := a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]
	return image.Rectangle{
		Min: image.Point{X: int(x), Y: int(y)},
		Max: image.Point{X: int(x + w), Y: int(y + h)},
	}
}

// Image is an entry of the dataset's image list. FileName is relative to the
// image root the dataset is rendered from.
type Image struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

// Info is the dataset's descriptive header.
type Info struct {
	Year        int    `json:"year"`
	Version     string `json:"version"`
	Contributor string `json:"contributor"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
}

// Dataset is the whole annotation file. It is not modified after loading.
type Dataset struct {
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
	Images      []Image      `json:"images"`
	Info        Info         `json:"info"`
}

// Load reads and validates the dataset stored at path.
func Load(path string) (ret *Dataset, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewResourceError(path, err)
	}
	defer f.Close()

	ret, err = Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	return
}

// Decode reads a dataset from r and validates it.
func Decode(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewResourceError("<reader>", err)
	}

	return Parse(data)
}

// Parse decodes a dataset from its JSON bytes. Every shape problem found is
// reported in a single *FormatError.
func Parse(data []byte) (*Dataset, error) {
	fe := &FormatError{}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		fe.add("$", "not a JSON object: %v", err)
		return nil, fe
	}

	ds := &Dataset{}
	for _, key := range []string{"annotations", "categories", "images", "info"} {
		if raw, ok := sections[key]; !ok || isNull(raw) {
			fe.add(key, "missing")
		}
	}

	if raw, ok := sections["categories"]; ok && !isNull(raw) {
		ds.Categories = decodeCategories(raw, fe)
	}
	if raw, ok := sections["images"]; ok && !isNull(raw) {
		ds.Images = decodeImages(raw, fe)
	}
	if raw, ok := sections["annotations"]; ok && !isNull(raw) {
		ds.Annotations = decodeAnnotations(raw, fe)
	}
	if raw, ok := sections["info"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &ds.Info); err != nil {
			fe.add(fieldOf("info", err), "%s", reasonOf(err))
		}
	}

	ds.check(fe)

	if len(fe.Problems) > 0 {
		return nil, fe
	}

	return ds, nil
}

// Validate checks the invariants that hold for a loaded dataset: unique ids,
// non-empty file names and non-negative box sizes.
func (d *Dataset) Validate() error {
	fe := &FormatError{}
	d.check(fe)
	if len(fe.Problems) > 0 {
		return fe
	}

	return nil
}

func (d *Dataset) check(fe *FormatError) {
	seenCat := make(map[int]bool, len(d.Categories))
	for i, c := range d.Categories {
		if seenCat[c.ID] {
			fe.add(fmt.Sprintf("categories[%d].id", i), "duplicate category id %d", c.ID)
		}
		seenCat[c.ID] = true
	}

	seenImg := make(map[int]bool, len(d.Images))
	for i, img := range d.Images {
		if seenImg[img.ID] {
			fe.add(fmt.Sprintf("images[%d].id", i), "duplicate image id %d", img.ID)
		}
		seenImg[img.ID] = true

		if img.FileName == "" {
			fe.add(fmt.Sprintf("images[%d].file_name", i), "empty")
		}
	}

	for i, a := range d.Annotations {
		if a.BBox[2] < 0 || a.BBox[3] < 0 {
			fe.add(fmt.Sprintf("annotations[%d].bbox", i), "negative size %vx%v", a.BBox[2], a.BBox[3])
		}
	}
}

type rawCategory struct {
	ID            *int    `json:"id"`
	Name          *string `json:"name"`
	SuperCategory string  `json:"supercategory"`
}

type rawImage struct {
	ID       *int    `json:"id"`
	Width    *int    `json:"width"`
	Height   *int    `json:"height"`
	FileName *string `json:"file_name"`
}

type rawAnnotation struct {
	ID           *int            `json:"id"`
	ImageID      *int            `json:"image_id"`
	CategoryID   *int            `json:"category_id"`
	Segmentation json.RawMessage `json:"segmentation"`
	BBox         []float64       `json:"bbox"`
	Ignore       int             `json:"ignore"`
	IsCrowd      int             `json:"iscrowd"`
	Area         float64         `json:"area"`
}

func decodeCategories(raw json.RawMessage, fe *FormatError) []Category {
	elems, ok := splitArray("categories", raw, fe)
	if !ok {
		return nil
	}

	ret := make([]Category, 0, len(elems))
	for i, e := range elems {
		prefix := fmt.Sprintf("categories[%d]", i)

		var rc rawCategory
		if err := json.Unmarshal(e, &rc); err != nil {
			fe.add(fieldOf(prefix, err), "%s", reasonOf(err))
			continue
		}

		missing := requireFields(prefix, fe, field{"id", rc.ID != nil}, field{"name", rc.Name != nil})
		if missing {
			continue
		}

		ret = append(ret, Category{ID: *rc.ID, Name: *rc.Name, SuperCategory: rc.SuperCategory})
	}

	return ret
}

func decodeImages(raw json.RawMessage, fe *FormatError) []Image {
	elems, ok := splitArray("images", raw, fe)
	if !ok {
		return nil
	}

	ret := make([]Image, 0, len(elems))
	for i, e := range elems {
		prefix := fmt.Sprintf("images[%d]", i)

		var ri rawImage
		if err := json.Unmarshal(e, &ri); err != nil {
			fe.add(fieldOf(prefix, err), "%s", reasonOf(err))
			continue
		}

		missing := requireFields(prefix, fe,
			field{"id", ri.ID != nil},
			field{"width", ri.Width != nil},
			field{"height", ri.Height != nil},
			field{"file_name", ri.FileName != nil})
		if missing {
			continue
		}

		ret = append(ret, Image{ID: *ri.ID, Width: *ri.Width, Height: *ri.Height, FileName: *ri.FileName})
	}

	return ret
}

func decodeAnnotations(raw json.RawMessage, fe *FormatError) []Annotation {
	elems, ok := splitArray("annotations", raw, fe)
	if !ok {
		return nil
	}

	ret := make([]Annotation, 0, len(elems))
	for i, e := range elems {
		prefix := fmt.Sprintf("annotations[%d]", i)

		var ra rawAnnotation
		if err := json.Unmarshal(e, &ra); err != nil {
			fe.add(fieldOf(prefix, err), "%s", reasonOf(err))
			continue
		}

		missing := requireFields(prefix, fe,
			field{"id", ra.ID != nil},
			field{"image_id", ra.ImageID != nil},
			field{"category_id", ra.CategoryID != nil},
			field{"bbox", ra.BBox != nil})
		if missing {
			continue
		}

		if len(ra.BBox) != 4 {
			fe.add(prefix+".bbox", "expected 4 numbers [x, y, width, height], got %d", len(ra.BBox))
			continue
		}

		a := Annotation{
			ID:           *ra.ID,
			ImageID:      *ra.ImageID,
			CategoryID:   *ra.CategoryID,
			Segmentation: ra.Segmentation,
			Ignore:       ra.Ignore,
			IsCrowd:      ra.IsCrowd,
			Area:         ra.Area,
		}
		copy(a.BBox[:], ra.BBox)
		ret = append(ret, a)
	}

	return ret
}

type field struct {
	name    string
	present bool
}

// requireFields records every absent field and reports whether any was missing.
func requireFields(prefix string, fe *FormatError, fields ...field) (missing bool) {
	for _, f := range fields {
		if !f.present {
			fe.add(prefix+"."+f.name, "missing")
			missing = true
		}
	}

	return
}

func splitArray(name string, raw json.RawMessage, fe *FormatError) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		fe.add(name, "expected an array: %s", reasonOf(err))
		return nil, false
	}

	return elems, true
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func fieldOf(prefix string, err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return prefix + "." + ute.Field
	}

	return prefix
}

func reasonOf(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value)
	}

	return err.Error()
}
