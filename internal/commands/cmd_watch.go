package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/texcomments/internal/core/comment"
	"github.com/colonyops/texcomments/internal/core/logging"
	"github.com/colonyops/texcomments/internal/core/span"
	"github.com/colonyops/texcomments/internal/core/styles"
	"github.com/colonyops/texcomments/internal/core/uiloop"
	"github.com/colonyops/texcomments/internal/document"
	"github.com/colonyops/texcomments/internal/printer"
	"github.com/colonyops/texcomments/internal/tui"
	"github.com/colonyops/texcomments/internal/watch"
	"github.com/colonyops/texcomments/pkg/iojson"
	"github.com/colonyops/texcomments/pkg/profiler"
)

func stateStyle(s comment.State) lipgloss.Style {
	switch s {
	case comment.StateShown:
		return styles.StateShownStyle
	case comment.StateEditing:
		return styles.StateEditingStyle
	default:
		return styles.StateRenderingStyle
	}
}

type WatchCmd struct {
	flags     *Flags
	once      bool
	plain     bool
	format    string
	debugAddr string
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Render the TeX comments of source files as they change",
		UsageText: "texcomments watch [options] [path]...",
		Description: `Scans the given files and directories (default: the current directory)
for //tex: comments, renders every comment and re-renders comments whose text
changes. Each block state change is printed above a live summary line; press
q to quit. When stdout is not a terminal, or with --plain, state changes are
printed as plain lines until interrupted.

With --once the command exits after every comment has rendered or failed.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "once",
				Usage:       "exit once every comment has settled",
				Destination: &cmd.once,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "print plain lines instead of the interactive view",
				Destination: &cmd.plain,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "summary format printed on exit with --once (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.StringFlag{
				Name:        "debug-addr",
				Usage:       "serve pprof and /debug/blocks on this address (e.g. localhost:6060)",
				Destination: &cmd.debugAddr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := cmd.flags.Config
	watcher, err := watch.New(watch.Config{
		Roots:    paths,
		Include:  cfg.Watch.Include,
		Exclude:  cfg.Watch.Exclude,
		Debounce: cfg.Watch.Debounce,
	}, logging.Component("watch"))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	files, err := watcher.Files()
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	p := printer.Ctx(ctx)
	interactive := !cmd.once && !cmd.plain && isTerminal(c.Root().Writer)
	var outbox *tui.Outbox
	if interactive {
		outbox = &tui.Outbox{}
		p = printer.New(outbox, outbox)
	}

	loop := uiloop.New(logging.Component("uiloop"))
	rep := newReporter(p)
	ws := document.NewWorkspace(cmd.flags.Renderer, cmd.flags.ZoomSetting, loop, rep, logging.Component("document"))
	rep.ws = ws
	defer ws.Close()

	if cmd.once {
		rep.onSettled = cancel
	}

	if cmd.debugAddr != "" {
		srv := profiler.New(cmd.debugAddr, logging.Component("profiler"))
		srv.Handle("/debug/blocks", blocksHandler(loop, ws))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		p.Infof("Debug server on http://%s/debug/blocks", srv.Addr())
	}

	if err := ws.Apply(files, nil); err != nil {
		p.Warnf("%v", err)
	}
	p.Infof("Watching %d file(s)", len(files))
	rep.checkSettled()

	if !cmd.once {
		go func() {
			err := watcher.Run(ctx, func(b watch.Batch) {
				loop.Post(func() {
					if err := ws.Apply(b.Changed, b.Deleted); err != nil {
						p.Warnf("%v", err)
					}
				})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	if interactive {
		return runInteractive(ctx, c.Root().Writer, loop, ws, outbox)
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if !cmd.once {
		return nil
	}
	return cmd.summarize(c, p, ws, rep.failures)
}

// runInteractive hands the UI loop to a bubbletea program until the user
// quits or ctx is cancelled.
func runInteractive(ctx context.Context, w io.Writer, loop *uiloop.Loop, ws *document.Workspace, outbox *tui.Outbox) error {
	m := tui.NewWatchModel(ctx, loop, outbox, func() tui.Counts { return countBlocks(ws) })
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(w))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run watch view: %w", err)
	}
	return nil
}

func countBlocks(ws *document.Workspace) tui.Counts {
	c := tui.Counts{Files: len(ws.Paths())}
	for path, blocks := range ws.Snapshot() {
		doc, ok := ws.Document(path)
		for _, b := range blocks {
			switch b.State {
			case comment.StateShown:
				c.Shown++
			case comment.StateEditing:
				c.Editing++
			default:
				c.Rendering++
			}
			if ok {
				if _, failed := doc.Failure(b.ID); failed {
					c.Failed++
				}
			}
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (cmd *WatchCmd) summarize(c *cli.Command, p *printer.Printer, ws *document.Workspace, failures int) error {
	if cmd.format == "json" {
		if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, ws.Snapshot()); err != nil {
			return err
		}
	} else {
		shown := 0
		for _, blocks := range ws.Snapshot() {
			for _, b := range blocks {
				if b.State == comment.StateShown {
					shown++
				}
			}
		}
		p.Printf("")
		p.Successf("%d comment(s) rendered", shown)
	}

	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d comment(s) failed to render", failures), 1)
	}
	return nil
}

// blocksHandler serves the workspace snapshot. The snapshot is taken on the
// UI loop.
func blocksHandler(loop *uiloop.Loop, ws *document.Workspace) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var snap map[string][]document.BlockInfo
		if err := loop.Do(r.Context(), func() { snap = ws.Snapshot() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = iojson.WriteWith(w, io.Discard, snap)
	})
}

// reporter prints block state changes. It runs on the UI loop.
type reporter struct {
	p         *printer.Printer
	ws        *document.Workspace
	states    map[int]comment.State
	failures  int
	onSettled func()
}

func newReporter(p *printer.Printer) *reporter {
	return &reporter{p: p, states: make(map[int]comment.State)}
}

func (r *reporter) TagsChanged(doc string, _ span.Span) {
	d, ok := r.ws.Document(doc)
	if !ok {
		return
	}

	for _, b := range d.Snapshot() {
		if prev, seen := r.states[b.ID]; seen && prev == b.State {
			continue
		}
		r.states[b.ID] = b.State
		r.p.Printf("%s %s %s",
			stateStyle(b.State).Render(fmt.Sprintf("%-9s", b.State)),
			printer.Dim(fmt.Sprintf("%s:%d", doc, b.Lines.First+1)),
			oneLine(b.Text),
		)
	}
	r.checkSettled()
}

func (r *reporter) RenderFailed(doc string, blockID int, err error) {
	r.failures++
	r.p.Errorf("%s block %d: %v", doc, blockID, err)
	r.checkSettled()
}

func (r *reporter) checkSettled() {
	if r.onSettled != nil && r.ws != nil && r.ws.Settled() {
		r.onSettled()
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > 60 {
		r := []rune(s)
		return string(r[:57]) + "..."
	}
	return s
}
