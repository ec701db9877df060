package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/texcomments/internal/core/config"
	"github.com/colonyops/texcomments/internal/render"
)

// ConfigCheck validates the loaded configuration.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a configuration check for cfg loaded from path.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	label := c.path
	if _, err := os.Stat(c.path); err != nil {
		label = "defaults"
	}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusFail,
			Detail: err.Error(),
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusPass,
		})
	}

	for _, w := range c.cfg.Warnings() {
		result.Items = append(result.Items, CheckItem{
			Label:  w.Category + " " + w.Item,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

// CacheCheck verifies the image cache directory is writable.
type CacheCheck struct {
	dir string
}

// NewCacheCheck creates a cache directory check.
func NewCacheCheck(dir string) *CacheCheck {
	return &CacheCheck{dir: dir}
}

func (c *CacheCheck) Name() string {
	return "Cache"
}

func (c *CacheCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	tmp, err := os.CreateTemp(c.dir, ".doctor-*")
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: "not writable: " + err.Error(),
		})
		return result
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	images, _ := filepath.Glob(filepath.Join(c.dir, "*.png"))
	result.Items = append(result.Items, CheckItem{
		Label:  c.dir,
		Status: StatusPass,
		Detail: fmt.Sprintf("%d cached image(s)", len(images)),
	})
	return result
}

// TeXCheck typesets a sample formula.
type TeXCheck struct {
	tex render.Typesetter
}

// NewTeXCheck creates a typesetting check.
func NewTeXCheck(tex render.Typesetter) *TeXCheck {
	return &TeXCheck{tex: tex}
}

func (c *TeXCheck) Name() string {
	return "TeX"
}

// sampleFormula exercises the preamble macros.
const sampleFormula = `\frac{a}{b} + x^2`

func (c *TeXCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	dvi, err := c.tex.Typeset(sampleFormula)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "typeset",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "typeset",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d bytes of DVI", len(dvi)),
	})
	return result
}
