// Package printer writes styled, human oriented command output.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/texcomments/internal/core/styles"
)

type ctxKey struct{}

// Printer writes status lines to an output and an error stream.
type Printer struct {
	out io.Writer
	err io.Writer
}

// New returns a printer writing to out and err. Nil writers default to
// stdout and stderr.
func New(out, err io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if err == nil {
		err = os.Stderr
	}
	return &Printer{out: out, err: err}
}

// NewContext stores p in ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stdout and stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout, os.Stderr)
}

// Printf writes an unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// Successf writes a line prefixed with a check mark.
func (p *Printer) Successf(format string, args ...any) {
	p.line(p.out, styles.TextSuccessStyle.Render("✔"), format, args...)
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, args ...any) {
	p.line(p.out, styles.TextInfoStyle.Render("•"), format, args...)
}

// Warnf writes a warning line to the error stream.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.err, styles.TextWarningStyle.Render("!"), format, args...)
}

// Errorf writes an error line to the error stream.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.err, styles.TextErrorStyle.Render("✘"), format, args...)
}

// Section writes a section heading.
func (p *Printer) Section(title string) {
	_, _ = fmt.Fprintln(p.out, styles.SectionStyle.Render(title))
}

// Dim renders s faint, for secondary details inside a line.
func Dim(s string) string {
	return styles.TextMutedStyle.Render(s)
}

func (p *Printer) line(w io.Writer, prefix, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}
