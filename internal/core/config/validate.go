package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/colonyops/texcomments/internal/render"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// glob patterns, the TeX preamble, and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validatePatterns(),
		c.validatePreamble(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Render.Workers > 16 {
		warnings = append(warnings, ValidationWarning{
			Category: "Render",
			Item:     "workers",
			Message:  fmt.Sprintf("%d workers will mostly wait on each other", c.Render.Workers),
		})
	}

	for i, p := range c.Watch.Exclude {
		for _, inc := range c.Watch.Include {
			if p == inc {
				warnings = append(warnings, ValidationWarning{
					Category: "Watch",
					Item:     fmt.Sprintf("exclude[%d]", i),
					Message:  fmt.Sprintf("pattern %q is both included and excluded", p),
				})
			}
		}
	}

	return warnings
}

// validateFileAccess checks the config file, data directory, and cache directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("render.cache_dir", c.CacheDir(), isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validatePatterns() error {
	var errs criterio.FieldErrorsBuilder

	for i, p := range c.Watch.Include {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("watch.include[%d]", i), fmt.Errorf("invalid glob %q", p))
		}
	}
	for i, p := range c.Watch.Exclude {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("watch.exclude[%d]", i), fmt.Errorf("invalid glob %q", p))
		}
	}

	return errs.ToError()
}

// validatePreamble typesets a trivial formula with the configured preamble so
// a broken preamble is reported once instead of failing every render.
func (c *Config) validatePreamble() error {
	if strings.TrimSpace(c.Render.Preamble) == "" {
		return nil
	}

	if _, err := render.NewTeX(c.Render.Preamble).Typeset("x"); err != nil {
		return criterio.NewFieldErrors("render.preamble", err)
	}
	return nil
}
