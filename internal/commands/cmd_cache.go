package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/texcomments/internal/core/validate"
	"github.com/colonyops/texcomments/internal/printer"
	"github.com/colonyops/texcomments/pkg/iojson"
)

type CacheCmd struct {
	flags  *Flags
	format string
}

// NewCacheCmd creates a new cache command.
func NewCacheCmd(flags *Flags) *CacheCmd {
	return &CacheCmd{flags: flags}
}

// Register adds the cache command to the application.
func (cmd *CacheCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "cache",
		Usage: "Inspect and purge the render cache",
		Commands: []*cli.Command{
			{
				Name:        "path",
				Usage:       "Show where a formula is cached",
				UsageText:   "texcomments cache path [options] <formula>",
				Description: "Prints the cache file a formula renders to at the current zoom and whether it exists.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.runPath,
			},
			{
				Name:      "clear",
				Usage:     "Delete every cached image",
				UsageText: "texcomments cache clear",
				Action:    cmd.runClear,
			},
		},
	})

	return app
}

func (cmd *CacheCmd) runPath(ctx context.Context, c *cli.Command) error {
	formula := c.Args().First()
	if err := validate.Formula(formula); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	path, exists := cmd.flags.Renderer.CachePath(formula)

	if cmd.format == "json" {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, struct {
			Path   string `json:"path"`
			Exists bool   `json:"exists"`
		}{path, exists})
	}

	p := printer.Ctx(ctx)
	if exists {
		p.Successf("%s", path)
	} else {
		p.Infof("%s %s", path, printer.Dim("(not rendered yet)"))
	}
	return nil
}

func (cmd *CacheCmd) runClear(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	n, err := cmd.flags.Renderer.ClearCache()
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if n == 0 {
		p.Infof("Cache is already empty")
		return nil
	}
	p.Successf("Removed %d cached image(s)", n)
	return nil
}
