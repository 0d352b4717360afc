package overlay

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/model-collapse/coco-viz/coco"
)

// basePalette holds the primary colors handed out when a dataset has few categories.
var basePalette = [...]string{
	"#0000FF", // blue
	"#FF0000", // red
	"#FFFF00", // yellow
	"#FF6600", // orange
	"#00FF00", // green
	"#6600FF", // purple
	"#000000", // black
	"#FFFFFF", // white
}

// Palette returns a copy of the default ordered palette.
func Palette() []string {
	p := basePalette
	return p[:]
}

// ColorMap maps category ids to colors written as "#RRGGBB".
type ColorMap map[int]string

// DefaultColorMap assigns palette colors to categories in listed order when
// there are no more categories than palette entries. Otherwise every category
// gets an independent uniform random color drawn from rnd, so two categories
// may end up with the same color. A nil rnd is replaced by a source seeded
// from the clock.
func DefaultColorMap(categories []coco.Category, palette []string, rnd *rand.Rand) ColorMap {
	ret := make(ColorMap, len(categories))

	if len(categories) <= len(palette) {
		for i, c := range categories {
			ret[c.ID] = palette[i]
		}
		return ret
	}

	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for _, c := range categories {
		v := rnd.Intn(0xFFFFFF + 1)
		ret[c.ID] = canonicalHex(colorful.Color{
			R: float64(v>>16&0xFF) / 255,
			G: float64(v>>8&0xFF) / 255,
			B: float64(v&0xFF) / 255,
		})
	}

	return ret
}

// ParseColorMap decodes a user supplied color map given as a JSON object.
// Keys are category ids ("1") or category names ("car"); values are hex colors
// with or without the leading '#'. The result is not checked for completeness,
// see Validate.
func ParseColorMap(raw string, ds *coco.Dataset) (ColorMap, error) {
	var entries map[string]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, errors.Wrapf(coco.ErrConfiguration, "color map is not a JSON object of hex strings: %v", err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make(ColorMap, len(entries))
	for _, k := range keys {
		c, ok := ds.CategoryByName(k)
		if id, err := strconv.Atoi(k); err == nil {
			if byID, found := ds.CategoryByID(id); found {
				c, ok = byID, true
			}
		}
		if !ok {
			return nil, errors.Wrapf(coco.ErrConfiguration, "color map key %q matches no category id or name", k)
		}
		id := c.ID

		if _, dup := ret[id]; dup {
			return nil, errors.Wrapf(coco.ErrConfiguration, "color map has more than one entry for category %d", id)
		}

		hex, err := normalizeHex(entries[k])
		if err != nil {
			return nil, errors.Wrapf(coco.ErrConfiguration, "color map entry %q: %v", k, err)
		}
		ret[id] = hex
	}

	return ret, nil
}

// Validate checks that the map holds exactly one entry per category.
func (m ColorMap) Validate(categories []coco.Category) error {
	if len(m) != len(categories) {
		return errors.Wrapf(coco.ErrConfiguration,
			"color map size mismatch: %d entries for %d categories", len(m), len(categories))
	}

	for _, c := range categories {
		if _, ok := m[c.ID]; !ok {
			return errors.Wrapf(coco.ErrConfiguration, "color map has no entry for category %d (%s)", c.ID, c.Name)
		}
	}

	return nil
}

// Resolve returns the opaque color of a category.
func (m ColorMap) Resolve(categoryID int) (color.NRGBA, error) {
	hex, ok := m[categoryID]
	if !ok {
		return color.NRGBA{}, errors.Wrapf(coco.ErrLookup, "category %d has no color", categoryID)
	}

	c, err := colorful.Hex(withHash(hex))
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(coco.ErrConfiguration, "category %d: bad color %q", categoryID, hex)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

func normalizeHex(s string) (string, error) {
	h := withHash(strings.TrimSpace(s))
	if len(h) != 7 && len(h) != 4 {
		return "", fmt.Errorf("%q is not a hex color", s)
	}

	c, err := colorful.Hex(h)
	if err != nil {
		return "", fmt.Errorf("%q is not a hex color", s)
	}

	return canonicalHex(c), nil
}

func withHash(s string) string {
	if strings.HasPrefix(s, "#") {
		return s
	}

	return "#" + s
}

func canonicalHex(c colorful.Color) string {
	return strings.ToUpper(c.Hex())
}
