// Package tui is the interactive view of the watch command. The bubbletea
// program owns the UI loop: every task posted to the loop runs inside Update.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/texcomments/internal/core/styles"
	"github.com/colonyops/texcomments/internal/core/uiloop"
)

// Counts is the block summary shown in the status line.
type Counts struct {
	Files     int
	Rendering int
	Shown     int
	Editing   int
	Failed    int
}

// Outbox collects lines written by loop tasks. The model prints them above
// the status line after each drain.
type Outbox struct {
	buf bytes.Buffer
}

func (o *Outbox) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

func (o *Outbox) take() string {
	s := strings.TrimRight(o.buf.String(), "\n")
	o.buf.Reset()
	return s
}

// tasksReadyMsg is sent when the UI loop has queued tasks.
type tasksReadyMsg struct{}

// waitForTasks returns a command that waits for the next loop wake-up.
func waitForTasks(ctx context.Context, ready <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ready:
			return tasksReadyMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// WatchModel drains the UI loop and renders a one-line block summary.
type WatchModel struct {
	ctx      context.Context
	loop     *uiloop.Loop
	out      *Outbox
	status   func() Counts
	counts   Counts
	quitting bool
}

// NewWatchModel creates the watch view. status is called on the UI loop
// after every drain.
func NewWatchModel(ctx context.Context, loop *uiloop.Loop, out *Outbox, status func() Counts) WatchModel {
	return WatchModel{ctx: ctx, loop: loop, out: out, status: status}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.drain, waitForTasks(m.ctx, m.loop.Ready()))
}

// drain runs tasks queued before the program started.
func (m WatchModel) drain() tea.Msg {
	return tasksReadyMsg{}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksReadyMsg:
		m.loop.Drain()
		m.counts = m.status()

		cmds := []tea.Cmd{waitForTasks(m.ctx, m.loop.Ready())}
		if lines := m.out.take(); lines != "" {
			cmds = append(cmds, tea.Println(lines))
		}
		return m, tea.Batch(cmds...)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	c := m.counts
	parts := []string{
		styles.StateShownStyle.Render(fmt.Sprintf("%d shown", c.Shown)),
		styles.StateRenderingStyle.Render(fmt.Sprintf("%d rendering", c.Rendering)),
	}
	if c.Editing > 0 {
		parts = append(parts, styles.StateEditingStyle.Render(fmt.Sprintf("%d editing", c.Editing)))
	}
	if c.Failed > 0 {
		parts = append(parts, styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", c.Failed)))
	}
	parts = append(parts, styles.TextMutedStyle.Render(fmt.Sprintf("%d file(s) · q to quit", c.Files)))

	return strings.Join(parts, "  ") + "\n"
}
