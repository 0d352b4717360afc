package main

import (
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/model-collapse/coco-viz/coco"
)

var gray = color.NRGBA{R: 120, G: 120, B: 120, A: 255}

func newTestLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

// assertNear compares colors allowing for rasterizer rounding.
func assertNear(t *testing.T, want, got color.NRGBA) {
	t.Helper()

	for i, pair := range [][2]uint8{{want.R, got.R}, {want.G, got.G}, {want.B, got.B}, {want.A, got.A}} {
		d := int(pair[0]) - int(pair[1])
		if d < -2 || d > 2 {
			assert.Fail(t, "color mismatch", "channel %d: want %v got %v", i, want, got)
			return
		}
	}
}

type fixture struct {
	root     string
	jsonPath string
	dest     string
}

// newFixture writes a dataset with the given categories and one 10x10 image
// "imgs/a.png" carrying one annotation per category.
func newFixture(t *testing.T, cats []coco.Category) fixture {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "imgs"), 0o755))
	require.NoError(t, imaging.Save(imaging.New(10, 10, gray), filepath.Join(root, "imgs", "a.png")))

	ds := coco.Dataset{
		Categories: cats,
		Images:     []coco.Image{{ID: 1, Width: 10, Height: 10, FileName: "imgs/a.png"}},
		Info:       coco.Info{Year: 2021, Version: "1", Contributor: "test"},
	}
	for i, c := range cats {
		ds.Annotations = append(ds.Annotations, coco.Annotation{
			ID: i + 1, ImageID: 1, CategoryID: c.ID, BBox: coco.BBox{2, 2, 4, 4},
		})
	}

	data, err := json.Marshal(ds)
	require.NoError(t, err)

	jsonPath := filepath.Join(root, "ds.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0o644))

	return fixture{root: root, jsonPath: jsonPath, dest: filepath.Join(root, "out")}
}

func (f fixture) run(args ...string) error {
	base := []string{"coco-viz", "--json-path", f.jsonPath, "--image-root", f.root}
	return newApp().Run(append(base, args...))
}

func TestRunDefaultColors(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}})

	require.NoError(t, f.run("--dest-dir", f.dest))

	out, err := imaging.Open(filepath.Join(f.dest, "a.png"))
	require.NoError(t, err)
	img := imaging.Clone(out)

	assertNear(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(4, 4))
	assert.Equal(t, gray, img.NRGBAAt(0, 0))
	assert.Equal(t, gray, img.NRGBAAt(7, 7))
}

func TestRunRelativeDestDir(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}})

	t.Chdir(f.root)

	require.NoError(t, newApp().Run([]string{"coco-viz", "--json-path", "ds.json", "--dest-dir", "vis/run1"}))
	assert.FileExists(t, filepath.Join(f.root, "vis", "run1", "a.png"))
}

func TestRunColorMapMismatch(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}, {ID: 2, Name: "can"}, {ID: 3, Name: "cup"}})

	err := f.run("--dest-dir", f.dest, "--color-map", `{"1": "#FF0000", "2": "#00FF00"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coco.ErrConfiguration))
	assert.Contains(t, err.Error(), "color map size mismatch")

	_, statErr := os.Stat(f.dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunColorMapByName(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}})

	require.NoError(t, f.run("--dest-dir", f.dest, "--color-map", `{"box": "00ff00"}`))

	out, err := imaging.Open(filepath.Join(f.dest, "a.png"))
	require.NoError(t, err)
	assertNear(t, color.NRGBA{G: 255, A: 255}, imaging.Clone(out).NRGBAAt(3, 3))
}

func TestRunMissingFlags(t *testing.T) {
	err := newApp().Run([]string{"coco-viz", "--dest-dir", t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, coco.ErrConfiguration))

	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}})
	err = f.run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, coco.ErrConfiguration))
}

func TestRunBadDataset(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}})
	require.NoError(t, os.WriteFile(f.jsonPath, []byte(`{"images": {}}`), 0o644))

	err := f.run("--dest-dir", f.dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coco.ErrFormat))
}

func TestRunConfigFile(t *testing.T) {
	f := newFixture(t, []coco.Category{{ID: 1, Name: "box"}, {ID: 2, Name: "can"}})

	cfgPath := filepath.Join(f.root, "conf.json")
	conf := `{"dest_dir": "` + filepath.ToSlash(f.dest) + `", "color_map": {"1": "#FF0000", "can": "#00FF00"}, "workers": 2}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(conf), 0o644))

	require.NoError(t, f.run("--config", cfgPath))
	assert.FileExists(t, filepath.Join(f.dest, "a.png"))

	// flags override the file
	err := f.run("--config", cfgPath, "--color-map", `{"1": "#FF0000"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coco.ErrConfiguration))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "conf.json")

	require.NoError(t, os.WriteFile(p, []byte(`{"json_path": "a.json", "color_map": "{\"1\": \"#FFFFFF\"}", "seed": 3}`), 0o644))
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "a.json", cfg.JSONPath)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(3), *cfg.Seed)

	raw, err := cfg.ColorMapJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"1": "#FFFFFF"}`, raw)

	require.NoError(t, os.WriteFile(p, []byte(`{"workers": "many"}`), 0o644))
	_, err = LoadConfig(p)
	assert.True(t, errors.Is(err, coco.ErrConfiguration))

	_, err = LoadConfig(filepath.Join(dir, "none.json"))
	assert.True(t, errors.Is(err, coco.ErrResource))
}

func TestBuildColorMapSeeded(t *testing.T) {
	var cats []coco.Category
	for i := 0; i < 12; i++ {
		cats = append(cats, coco.Category{ID: i, Name: string(rune('a' + i))})
	}
	ds := &coco.Dataset{Categories: cats}

	seed := int64(42)
	first, err := buildColorMap(ds, Config{Seed: &seed}, newTestLogger(t))
	require.NoError(t, err)
	second, err := buildColorMap(ds, Config{Seed: &seed}, newTestLogger(t))
	require.NoError(t, err)

	assert.Len(t, first, 12)
	assert.Equal(t, first, second)
}
