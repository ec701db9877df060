package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"star-tex.org/x/tex"
)

// DefaultPreamble is prepended to every formula before typesetting.
const DefaultPreamble = `\nopagenumbers

\def\frac#1#2{{{#1}\over{#2}}}
`

// Typesetter converts a formula into DVI.
type Typesetter interface {
	Typeset(formula string) ([]byte, error)
}

// TeXError carries the engine log of a failed typesetting run.
type TeXError struct {
	Formula string
	Log     string
	Err     error
}

func (e *TeXError) Error() string {
	return fmt.Sprintf("typeset %q: %v", e.Formula, e.Err)
}

func (e *TeXError) Unwrap() error {
	return e.Err
}

// TeX typesets formulas in plain TeX math mode with the star-tex engine.
// The engine is not reentrant so runs are serialised.
type TeX struct {
	mu       sync.Mutex
	engine   *tex.Engine
	preamble string
}

// NewTeX returns a typesetter using preamble, or DefaultPreamble if empty.
func NewTeX(preamble string) *TeX {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	return &TeX{preamble: preamble}
}

// Typeset runs formula through TeX inside one pair of $ $ and returns the DVI
// output.
func (t *TeX) Typeset(formula string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := strings.NewReader(fmt.Sprintf("%s $%s$\n\\bye\n", t.preamble, formula))
	w := &bytes.Buffer{}
	stdout := &bytes.Buffer{}
	if t.engine == nil {
		t.engine = tex.New()
	}
	t.engine.Stdout = stdout
	if err := t.engine.Process(w, r); err != nil {
		return nil, &TeXError{Formula: formula, Log: stdout.String(), Err: err}
	}
	return w.Bytes(), nil
}
