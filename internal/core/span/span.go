// Package span defines the document ranges exchanged between comment blocks
// and the host editor.
package span

import "fmt"

// Span is a half-open character range [Start, End) in a host document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// New returns the span [start, end). A reversed pair is normalised.
func New(start, end int) Span {
	if end < start {
		start, end = end, start
	}
	return Span{Start: start, End: end}
}

// FromLength returns the span starting at start covering length characters.
func FromLength(start, length int) Span {
	return New(start, start+length)
}

// Len returns the number of characters covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no characters.
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Contains reports whether pos lies inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.End
}

// Cover returns the smallest span containing both s and other.
func (s Span) Cover(other Span) Span {
	return Span{
		Start: min(s.Start, other.Start),
		End:   max(s.End, other.End),
	}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// LineSpan is the inclusive range of lines a region occupies.
type LineSpan struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Count returns the number of lines in the range.
func (l LineSpan) Count() int {
	return l.Last - l.First + 1
}
