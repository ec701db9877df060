package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/texcomments/internal/core/validate"
	"github.com/colonyops/texcomments/internal/printer"
	"github.com/colonyops/texcomments/pkg/iojson"
)

type RenderCmd struct {
	flags  *Flags
	format string
	input  iojson.FileReader[[]string]
}

// renderOutput is the result of rendering one formula.
type renderOutput struct {
	Formula string  `json:"formula"`
	Token   string  `json:"token,omitempty"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// NewRenderCmd creates a new render command.
func NewRenderCmd(flags *Flags) *RenderCmd {
	return &RenderCmd{flags: flags}
}

// Register adds the render command to the application.
func (cmd *RenderCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "render",
		Usage:     "Render formulas to cached images",
		UsageText: "texcomments render [options] <formula>...",
		Description: `Typesets each formula at the current zoom and stores the image in the
render cache. Without arguments a JSON array of formulas is read from --file
or stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			cmd.input.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RenderCmd) run(ctx context.Context, c *cli.Command) error {
	formulas := c.Args().Slice()
	if len(formulas) == 0 {
		var err error
		formulas, err = cmd.input.Read()
		if err != nil {
			return fmt.Errorf("read formulas: %w", err)
		}
	}

	outputs := make([]renderOutput, 0, len(formulas))
	failed := 0
	for _, f := range formulas {
		out := cmd.render(ctx, f)
		if out.Error != "" {
			failed++
		}
		outputs = append(outputs, out)
	}

	if cmd.format == "json" {
		if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, outputs); err != nil {
			return err
		}
	} else {
		p := printer.Ctx(ctx)
		for _, out := range outputs {
			if out.Error != "" {
				p.Errorf("%s: %s", out.Formula, out.Error)
				continue
			}
			p.Successf("%s %s", out.Formula, printer.Dim(fmt.Sprintf("%dx%d %s", out.Width, out.Height, out.Token)))
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d formula(s) failed to render", failed), 1)
	}
	return nil
}

func (cmd *RenderCmd) render(ctx context.Context, formula string) renderOutput {
	out := renderOutput{Formula: formula}
	if err := validate.Formula(formula); err != nil {
		out.Error = err.Error()
		return out
	}

	res, err := cmd.flags.Renderer.Render(ctx, formula)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Token = res.CacheToken
	out.Width = res.Width
	out.Height = res.Height
	out.Scale = res.Scale
	return out
}
