package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/texcomments/internal/core/zoom"
)

// ZoomPresetCompleter returns a ShellCompleteFunc that suggests the zoom
// presets as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func ZoomPresetCompleter() cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		// Delegate to default flag completion when typing a flag
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		w := cmd.Root().Writer
		for _, p := range zoom.Presets() {
			_, _ = fmt.Fprintln(w, strconv.FormatFloat(p, 'f', -1, 64))
		}
	}
}
