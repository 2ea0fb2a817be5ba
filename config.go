package yolov5

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a detector setup loadable from a YAML file
type Config struct {
	// Engine is the path of the serialized TensorRT engine
	Engine string `yaml:"engine"`
	// Classes is the optional path of a class name file, one name per line
	Classes string `yaml:"classes"`

	// ScoreThreshold and NMSThreshold override the default detection
	// thresholds when present.  Pointers distinguish an explicit 0 from
	// an absent key, which keeps the default
	ScoreThreshold *float64 `yaml:"scoreThreshold"`
	NMSThreshold   *float64 `yaml:"nmsThreshold"`

	// Preprocessor selects the pre-processing backend: "auto", "cuda" or
	// "cpu".  Empty means auto
	Preprocessor string `yaml:"preprocessor"`

	// ColorOrder is the channel order of input images: "bgr" or "rgb".
	// Empty means bgr
	ColorOrder string `yaml:"colorOrder"`
}

// LoadConfig reads and parses a YAML detector configuration file
func LoadConfig(path string) (Config, error) {

	var cfg Config

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, fmt.Errorf("read config file '%s': %v: %w", path, err,
			ErrFilesystem)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file '%s': %v: %w", path, err,
			ErrInvalidInput)
	}

	return cfg, nil
}

// DetectorFlags converts the configured backend and color order into the
// flag bits accepted by Init and Detect
func (c Config) DetectorFlags() (int, error) {

	flags := 0

	switch c.Preprocessor {
	case "", "auto":
	case "cuda":
		flags |= PreprocessorCUDA
	case "cpu":
		flags |= PreprocessorCPU
	default:
		return 0, fmt.Errorf("unknown preprocessor '%s': %w",
			c.Preprocessor, ErrInvalidInput)
	}

	switch c.ColorOrder {
	case "", "bgr":
		flags |= InputBGR
	case "rgb":
		flags |= InputRGB
	default:
		return 0, fmt.Errorf("unknown color order '%s': %w",
			c.ColorOrder, ErrInvalidInput)
	}

	return flags, nil
}

// NewDetectorFromConfig creates, initializes and loads a Detector from a
// configuration.  The caller owns the returned detector and must Close it
func NewDetectorFromConfig(cfg Config) (*Detector, error) {

	flags, err := cfg.DetectorFlags()

	if err != nil {
		return nil, err
	}

	d := NewDetector()

	if err := d.Init(flags); err != nil {
		return nil, err
	}

	if err := d.LoadEngine(cfg.Engine); err != nil {
		d.Close()
		return nil, err
	}

	if cfg.Classes != "" {
		if err := d.LoadClasses(cfg.Classes); err != nil {
			d.Close()
			return nil, err
		}
	}

	if cfg.ScoreThreshold != nil {
		if err := d.SetScoreThreshold(*cfg.ScoreThreshold); err != nil {
			d.Close()
			return nil, err
		}
	}

	if cfg.NMSThreshold != nil {
		if err := d.SetNMSThreshold(*cfg.NMSThreshold); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}
