package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Capture parameters are fixed; they are not part of Config on purpose.
const (
	CaptureFPS      = 60
	CaptureDuration = 8 * time.Second
	VideoBitRate    = 6_000_000
	OutputBaseName  = "nightwalk"
)

// MimePreferences is the ordered list of encodings a capture tries.
var MimePreferences = []string{
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/webm",
}

type Config struct {
	Listen      string `yaml:"listen"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	RefreshRate int    `yaml:"refresh_rate"`
	FFmpegPath  string `yaml:"ffmpeg"`
	OutputVideo string `yaml:"output"`
	Workers     int    `yaml:"workers"`
	LogLevel    string `yaml:"log_level"`
	LogConsole  bool   `yaml:"log_console"`

	BuildVersion string `yaml:"-"`
}

// Default returns the configuration used when no file and no flags are given.
func Default() Config {
	return Config{
		Listen:      "127.0.0.1:8080",
		Width:       960,
		Height:      540,
		RefreshRate: 60,
		FFmpegPath:  "ffmpeg",
		Workers:     4,
		LogLevel:    "info",
	}
}

// Load reads a YAML file on top of Default. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Write stores cfg as YAML, e.g. to seed a config file.
func Write(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", c.Width, c.Height)
	}
	// yuv420p needs even dimensions
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("surface size %dx%d must be even", c.Width, c.Height)
	}
	if c.RefreshRate <= 0 {
		return fmt.Errorf("invalid refresh rate %d", c.RefreshRate)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid worker count %d", c.Workers)
	}
	return nil
}

// FrameInterval is the scheduler's display refresh period.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.RefreshRate)
}

// OutputFilename is the download name for an artifact with the given container.
func OutputFilename(ext string) string {
	return OutputBaseName + "." + ext
}
