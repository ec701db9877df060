// Package scan finds TeX comment regions in source text.
//
// A TeX comment starts with a line comment whose body begins with "tex:" and
// continues over the directly following line comments:
//
//	//tex: \sum_{i=0}^n i
//	//     = \frac{n(n+1)}{2}
package scan

import (
	"strings"

	"github.com/colonyops/texcomments/internal/core/span"
)

// Marker opens a TeX comment.
const Marker = "tex:"

const lineComment = "//"

// Comment is one TeX comment found in a document.
type Comment struct {
	Text  string        // TeX source without comment marks
	Span  span.Span     // byte span from the first "//" to the end of the last line
	Lines span.LineSpan // zero-based line range
}

type line struct {
	start int // offset of the line in the source
	text  string
}

// Comments returns the TeX comments in src in document order.
func Comments(src string) []Comment {
	lines := splitLines(src)

	var (
		out     []Comment
		current *Comment
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(body, "\n")
		out = append(out, *current)
		current = nil
		body = nil
	}

	for i, l := range lines {
		trimmed := strings.TrimLeft(l.text, " \t")
		indent := len(l.text) - len(trimmed)

		if !strings.HasPrefix(trimmed, lineComment) {
			flush()
			continue
		}
		content := strings.TrimPrefix(trimmed, lineComment)
		stripped := strings.TrimLeft(content, " ")

		if strings.HasPrefix(stripped, Marker) {
			flush()
			current = &Comment{
				Span:  span.New(l.start+indent, l.start+len(strings.TrimRight(l.text, "\r"))),
				Lines: span.LineSpan{First: i, Last: i},
			}
			body = append(body, strings.TrimSpace(strings.TrimPrefix(stripped, Marker)))
			continue
		}

		if current != nil {
			current.Span.End = l.start + len(strings.TrimRight(l.text, "\r"))
			current.Lines.Last = i
			body = append(body, strings.TrimSpace(content))
		}
	}
	flush()

	return out
}

func splitLines(src string) []line {
	var lines []line
	start := 0
	for start <= len(src) {
		end := strings.IndexByte(src[start:], '\n')
		if end < 0 {
			lines = append(lines, line{start: start, text: src[start:]})
			break
		}
		lines = append(lines, line{start: start, text: src[start : start+end]})
		start += end + 1
	}
	return lines
}
