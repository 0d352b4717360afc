package overlay

import (
	"os"

	"github.com/model-collapse/coco-viz/coco"
)

// EnsureDir creates dir and its parents when missing and checks that files can
// be written into it. An existing directory is reused.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return coco.NewResourceError(dir, err)
	}

	if err := checkWritable(dir); err != nil {
		return coco.NewResourceError(dir, err)
	}

	return nil
}
