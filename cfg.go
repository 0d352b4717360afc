package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/model-collapse/coco-viz/coco"
)

// Config holds every option of a run. It is read from an optional JSON file
// and then overridden by the flags given on the command line.
type Config struct {
	JSONPath   string          `json:"json_path"`
	DestDir    string          `json:"dest_dir"`
	ImageRoot  string          `json:"image_root"`
	ShowLabels bool            `json:"show_labels"`
	ColorMap   json.RawMessage `json:"color_map"`
	Workers    int             `json:"workers"`
	KeepGoing  bool            `json:"keep_going"`
	Seed       *int64          `json:"seed"`
	Addr       string          `json:"addr"`
}

// LoadConfig reads a JSON config file.
func LoadConfig(path string) (ret Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = coco.NewResourceError(path, err)
		return
	}

	if err = json.Unmarshal(data, &ret); err != nil {
		err = errors.Wrapf(coco.ErrConfiguration, "config %s: %v", path, err)
	}

	return
}

// ColorMapJSON returns the color map as a JSON object string. The config file
// may hold it either as an object or as a string containing one.
func (c Config) ColorMapJSON() (string, error) {
	if len(c.ColorMap) == 0 || string(c.ColorMap) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(c.ColorMap, &s); err == nil {
		return s, nil
	}

	return string(c.ColorMap), nil
}

// DestPath resolves the destination directory against the working directory.
func (c Config) DestPath() (string, error) {
	if filepath.IsAbs(c.DestDir) {
		return c.DestDir, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", coco.NewResourceError(".", err)
	}

	return filepath.Join(wd, c.DestDir), nil
}

// configFromContext merges the config file named by --config with the flags
// that were set explicitly.
func configFromContext(c *cli.Context) (cfg Config, err error) {
	if p := c.String(flagConfig); p != "" {
		if cfg, err = LoadConfig(p); err != nil {
			return
		}
	}

	if c.IsSet(flagJSONPath) {
		cfg.JSONPath = c.String(flagJSONPath)
	}
	if c.IsSet(flagDestDir) {
		cfg.DestDir = c.String(flagDestDir)
	}
	if c.IsSet(flagImageRoot) {
		cfg.ImageRoot = c.String(flagImageRoot)
	}
	if c.IsSet(flagShowLabels) {
		cfg.ShowLabels = c.Bool(flagShowLabels)
	}
	if c.IsSet(flagColorMap) {
		cfg.ColorMap, err = json.Marshal(c.String(flagColorMap))
		if err != nil {
			return
		}
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagKeepGoing) {
		cfg.KeepGoing = c.Bool(flagKeepGoing)
	}
	if c.IsSet(flagSeed) {
		seed := c.Int64(flagSeed)
		cfg.Seed = &seed
	}
	if c.IsSet(flagAddr) {
		cfg.Addr = c.String(flagAddr)
	}

	if cfg.JSONPath == "" {
		err = errors.Wrapf(coco.ErrConfiguration, "--%s is required", flagJSONPath)
	}

	return
}
