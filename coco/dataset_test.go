package coco

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "info": {"year": 2021, "version": "1.0", "contributor": "qa"},
  "licenses": [],
  "categories": [{"id": 1, "name": "box"}, {"id": 2, "name": "can", "supercategory": "trash"}],
  "images": [{"id": 1, "width": 10, "height": 10, "file_name": "imgs/a.png"}],
  "annotations": [
    {"id": 7, "image_id": 1, "category_id": 1, "segmentation": [], "bbox": [2, 2, 4, 4],
     "ignore": 0, "iscrowd": 0, "area": 16},
    {"id": 8, "image_id": 1, "category_id": 2, "segmentation": [[1.5, 2.5, 3, 4]], "bbox": [0.5, 1, 2.9, 3]}
  ]
}`

func TestParse(t *testing.T) {
	ds, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, Info{Year: 2021, Version: "1.0", Contributor: "qa"}, ds.Info)
	assert.Equal(t, []Category{{ID: 1, Name: "box"}, {ID: 2, Name: "can", SuperCategory: "trash"}}, ds.Categories)
	assert.Equal(t, []Image{{ID: 1, Width: 10, Height: 10, FileName: "imgs/a.png"}}, ds.Images)

	require.Len(t, ds.Annotations, 2)
	first := ds.Annotations[0]
	assert.Equal(t, 7, first.ID)
	assert.Equal(t, 1, first.ImageID)
	assert.Equal(t, 1, first.CategoryID)
	assert.Equal(t, BBox{2, 2, 4, 4}, first.BBox)
	assert.Equal(t, 16.0, first.Area)

	// optional fields default to zero
	assert.Equal(t, 0, ds.Annotations[1].Ignore)
	assert.Equal(t, 0.0, ds.Annotations[1].Area)
}

func TestCorners(t *testing.T) {
	a := Annotation{BBox: BBox{2, 2, 4, 4}}
	assert.Equal(t, image.Rect(2, 2, 6, 6), a.Corners())

	a = Annotation{BBox: BBox{0.5, 1, 2.9, 3}}
	assert.Equal(t, image.Rect(0, 1, 3, 4), a.Corners())

	a = Annotation{BBox: BBox{5, 5, 0, 0}}
	assert.True(t, a.Corners().Empty())
}

func TestParseReportsEveryProblem(t *testing.T) {
	data := `{
	  "categories": [{"id": 1, "name": "dup"}, {"id": 1, "name": "dup2"}, {"id": "one", "name": "box"}, {"name": "can"}],
	  "images": [{"id": 1, "width": 10, "height": 10, "file_name": ""}, {"id": 2}],
	  "annotations": [
	    {"id": 1, "image_id": 1, "category_id": 1, "bbox": [1, 2, -3, 4]},
	    {"id": 2, "image_id": 1, "category_id": 1, "bbox": [1, 2, 3]},
	    {"id": 3, "image_id": 1, "bbox": [1, 2, 3, 4]}
	  ]
	}`

	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))

	var fe *FormatError
	require.True(t, errors.As(err, &fe))

	fields := make([]string, 0, len(fe.Problems))
	for _, p := range fe.Problems {
		fields = append(fields, p.Field)
	}

	assert.ElementsMatch(t, []string{
		"info",
		"categories[1].id",
		"categories[2].id",
		"categories[3].id",
		"images[0].file_name",
		"images[1].width",
		"images[1].height",
		"images[1].file_name",
		"annotations[0].bbox",
		"annotations[1].bbox",
		"annotations[2].category_id",
	}, fields)
}

func TestParseNotAnObject(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = Parse([]byte(`{"categories": {}, "images": [], "annotations": [], "info": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "categories: expected an array")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ds.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	ds, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, ds.Images, 1)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResource))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, os.WriteFile(path, []byte(`{"images": 3}`), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
	assert.True(t, strings.HasPrefix(err.Error(), "loading "+path))
}

func TestDecode(t *testing.T) {
	ds, err := Decode(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	assert.Len(t, ds.Categories, 2)
}

func TestValidate(t *testing.T) {
	ds := &Dataset{
		Categories: []Category{{ID: 1, Name: "box"}},
		Images:     []Image{{ID: 1, FileName: "imgs/a.png"}},
	}
	assert.NoError(t, ds.Validate())

	ds.Images = append(ds.Images, Image{ID: 1, FileName: "imgs/b.png"})
	err := ds.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
	assert.Contains(t, err.Error(), "duplicate image id 1")
}
