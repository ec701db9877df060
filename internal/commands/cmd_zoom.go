package commands

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/texcomments/internal/core/validate"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/printer"
)

type ZoomCmd struct {
	flags *Flags
}

// NewZoomCmd creates a new zoom command.
func NewZoomCmd(flags *Flags) *ZoomCmd {
	return &ZoomCmd{flags: flags}
}

// Register adds the zoom command to the application.
func (cmd *ZoomCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "zoom",
		Usage:     "List the zoom presets",
		UsageText: "texcomments zoom [scale]",
		Description: `Lists the zoom presets and marks the active one. With a scale argument the
nearest preset is marked instead. Set the zoom with --zoom or the zoom key in
the config file.`,
		ShellComplete: ZoomPresetCompleter(),
		Action:        cmd.run,
	})

	return app
}

func (cmd *ZoomCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	current := cmd.flags.ZoomSetting.Get()
	if c.Args().Present() {
		v, err := strconv.ParseFloat(c.Args().First(), 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid scale %q", c.Args().First()), 1)
		}
		if err := validate.Zoom(v); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		current = v
	}

	nearest := nearestPreset(current)
	for _, preset := range zoom.Presets() {
		label := fmt.Sprintf("%3.0f%%", preset*100)
		if preset == nearest {
			p.Successf("%s", label)
			continue
		}
		p.Printf("  %s", label)
	}
	return nil
}

func nearestPreset(scale float64) float64 {
	presets := zoom.Presets()
	best := presets[0]
	for _, p := range presets[1:] {
		if math.Abs(p-scale) < math.Abs(best-scale) {
			best = p
		}
	}
	return best
}
