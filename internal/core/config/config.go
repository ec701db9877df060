// Package config handles configuration loading and validation for texcomments.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/texcomments/internal/core/styles"
	"github.com/colonyops/texcomments/internal/core/validate"
)

// Config holds the application configuration.
type Config struct {
	Zoom    float64      `yaml:"zoom"`
	Theme   string       `yaml:"theme"`
	Render  RenderConfig `yaml:"render"`
	Watch   WatchConfig  `yaml:"watch"`
	DataDir string       `yaml:"-"` // set by caller, not from config file
}

// RenderConfig controls typesetting and the image cache.
type RenderConfig struct {
	Workers  int           `yaml:"workers"`   // concurrent renders
	CacheDir string        `yaml:"cache_dir"` // defaults to <data dir>/cache
	DPIScale float64       `yaml:"dpi_scale"` // multiplier on top of the zoom
	Preamble string        `yaml:"preamble"`  // TeX preamble; empty uses the built-in one
	Timeout  time.Duration `yaml:"timeout"`   // per render
}

// WatchConfig selects the files the watch command follows.
type WatchConfig struct {
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Zoom:  1.0,
		Theme: styles.DefaultTheme,
		Render: RenderConfig{
			Workers:  2,
			DPIScale: 1.0,
			Timeout:  30 * time.Second,
		},
		Watch: WatchConfig{
			Include:  []string{"**/*.go"},
			Exclude:  []string{"vendor/**", "**/testdata/**"},
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Zoom == 0 {
		c.Zoom = defaults.Zoom
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = defaults.Render.Workers
	}
	if c.Render.DPIScale == 0 {
		c.Render.DPIScale = defaults.Render.DPIScale
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = defaults.Render.Timeout
	}
	if c.Render.CacheDir == "" && c.DataDir != "" {
		c.Render.CacheDir = filepath.Join(c.DataDir, "cache")
	}
	if len(c.Watch.Include) == 0 {
		c.Watch.Include = defaults.Watch.Include
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if err := validate.Zoom(c.Zoom); err != nil {
		return err
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("theme %q is not one of %v", c.Theme, styles.ThemeNames())
	}

	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be at least 1")
	}

	if c.Render.DPIScale <= 0 {
		return fmt.Errorf("render.dpi_scale must be greater than 0")
	}

	if c.Render.Timeout < 0 {
		return fmt.Errorf("render.timeout cannot be negative")
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce cannot be negative")
	}

	return nil
}

// CacheDir returns the directory rendered images are stored in.
func (c *Config) CacheDir() string {
	if c.Render.CacheDir != "" {
		return c.Render.CacheDir
	}
	return filepath.Join(c.DataDir, "cache")
}

// LogFile returns the default log file path inside the data directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "texcomments.log")
}
