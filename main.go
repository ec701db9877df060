package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/texcomments/internal/commands"
	"github.com/colonyops/texcomments/internal/core/config"
	"github.com/colonyops/texcomments/internal/core/logging"
	"github.com/colonyops/texcomments/internal/core/styles"
	"github.com/colonyops/texcomments/internal/core/validate"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/printer"
	"github.com/colonyops/texcomments/internal/render"
	"github.com/colonyops/texcomments/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "texcomments",
		Usage:     "Render TeX formulas written in source comments",
		UsageText: "texcomments [global options] command [command options]",
		Description: `texcomments finds //tex: comments in source files, typesets them and keeps
a cache of the rendered images.

Run 'texcomments watch' to render the comments below the current directory
and follow changes.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TEXCOMMENTS_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (logs go to stderr when empty)",
				Sources:     cli.EnvVars("TEXCOMMENTS_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TEXCOMMENTS_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TEXCOMMENTS_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.FloatFlag{
				Name:        "zoom",
				Usage:       "custom zoom applied to rendered formulas (overrides the config file)",
				Sources:     cli.EnvVars("TEXCOMMENTS_ZOOM"),
				Destination: &flags.Zoom,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.Theme)
			styles.SetTheme(palette)

			scale := cfg.Zoom
			if flags.Zoom != 0 {
				if err := validate.Zoom(flags.Zoom); err != nil {
					return ctx, fmt.Errorf("--zoom: %w", err)
				}
				scale = flags.Zoom
			}

			zs := zoom.NewWithScale(scale, logging.Component("zoom"))
			zs.OnPanic(func(scale float64, recovered any) {
				log.Error().Float64("scale", scale).Interface("panic", recovered).Msg("zoom handler failed")
			})
			flags.ZoomSetting = zs

			flags.Renderer, err = render.NewManager(render.Config{
				CacheDir: cfg.CacheDir(),
				Workers:  cfg.Render.Workers,
				DPIScale: cfg.Render.DPIScale,
				Preamble: cfg.Render.Preamble,
				Timeout:  cfg.Render.Timeout,
			}, zs, nil, logging.Component("render"))
			if err != nil {
				return ctx, fmt.Errorf("create renderer: %w", err)
			}

			return printer.NewContext(ctx, printer.New(c.Root().Writer, c.Root().ErrWriter)), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flags.Renderer != nil {
				flags.Renderer.Close()
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewRenderCmd(flags).Register(app)
	app = commands.NewWatchCmd(flags).Register(app)
	app = commands.NewCacheCmd(flags).Register(app)
	app = commands.NewZoomCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
