// Package config provides configuration loading and management.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/diamondburned/tcell-anim/tsixel"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for tcell-anim.
type Config struct {
	// Playback
	Mode       string  `yaml:"mode"`
	Loop       bool    `yaml:"loop"`
	Autoplay   bool    `yaml:"autoplay"`
	Speed      float64 `yaml:"speed"`
	MinDelayMs int     `yaml:"min_delay_ms"` // at least 1

	// Host loop
	FPS float64 `yaml:"fps"`

	// Rendering
	Image ImageConfig `yaml:"image"`

	// Logging
	Log LogConfig `yaml:"log"`

	// DownloadDir is where remote sources are staged. Empty uses the system
	// temporary directory.
	DownloadDir string `yaml:"download_dir"`
	// DumpDir, if set, also writes every presented frame as PNG into it.
	DumpDir string `yaml:"dump_dir"`
}

// ImageConfig represents SIXEL rendering settings.
type ImageConfig struct {
	KeepRatio bool   `yaml:"keep_ratio"`
	Dither    bool   `yaml:"dither"`
	Colors    int    `yaml:"colors"`
	Scaler    string `yaml:"scaler"`
}

// LogConfig represents logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Mode:       "streaming",
		Autoplay:   true,
		Speed:      1,
		MinDelayMs: int(anim.DefaultMinDelay / time.Millisecond),
		FPS:        60,
		Image: ImageConfig{
			KeepRatio: true,
			Colors:    tsixel.DefaultColors,
			Scaler:    "approx-bilinear",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}

	return cfg, nil
}

// Validate checks that every value is in range.
func (c Config) Validate() error {
	if _, err := anim.ParseMode(c.Mode); err != nil {
		return err
	}
	if !anim.ValidSpeed(c.Speed) {
		return errors.Errorf("speed must be positive and finite, got %v", c.Speed)
	}
	if c.MinDelayMs < 1 {
		return errors.Errorf("min_delay_ms must be at least 1, got %d", c.MinDelayMs)
	}
	if c.FPS <= 0 || c.FPS > 1000 {
		return errors.Errorf("fps %v out of range (0, 1000]", c.FPS)
	}
	if _, err := ParseScaler(c.Image.Scaler); err != nil {
		return err
	}
	if err := (tsixel.ImageOpts{Colors: c.Image.Colors}).Validate(); err != nil {
		return err
	}
	if c.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return errors.Wrapf(err, "invalid log level %q", c.Log.Level)
		}
	}
	return nil
}

// AnimOptions converts the playback settings.
func (c Config) AnimOptions() (anim.Options, error) {
	mode, err := anim.ParseMode(c.Mode)
	if err != nil {
		return anim.Options{}, err
	}

	return anim.Options{
		PlayOnReady: c.Autoplay,
		Loop:        c.Loop,
		Speed:       c.Speed,
		Mode:        mode,
		MinDelay:    time.Duration(c.MinDelayMs) * time.Millisecond,
	}, nil
}

// ImageOpts converts the rendering settings.
func (c Config) ImageOpts() (tsixel.ImageOpts, error) {
	scaler, err := ParseScaler(c.Image.Scaler)
	if err != nil {
		return tsixel.ImageOpts{}, err
	}

	return tsixel.ImageOpts{
		Scaler:    scaler,
		KeepRatio: c.Image.KeepRatio,
		Dither:    c.Image.Dither,
		Colors:    c.Image.Colors,
	}, nil
}

// TickInterval returns the time between two host ticks.
func (c Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.FPS)
}

// ParseScaler parses a scaler name. An empty name is the default scaler.
func ParseScaler(name string) (draw.Scaler, error) {
	switch strings.ToLower(name) {
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, errors.Errorf("unknown scaler %q", name)
	}
}
