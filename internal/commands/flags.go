package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/texcomments/internal/core/config"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/render"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string
	Zoom       float64

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// ZoomSetting is the process wide custom zoom
	ZoomSetting *zoom.Setting

	// Renderer renders and caches formulas for every command
	Renderer *render.Manager
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "texcomments", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "texcomments")
}
