// Package edittrack records the spans touched while a comment block is being
// edited so the host can be told which text to re-tag afterwards.
package edittrack

import "github.com/colonyops/texcomments/internal/core/span"

// Tracker accumulates edit spans in arrival order. Merging happens only when
// the covering span is read.
//
// Tracker is not safe for concurrent use; it is owned by a single comment
// block and only touched on the UI loop.
type Tracker struct {
	spans []span.Span
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Record appends an edit span.
func (t *Tracker) Record(s span.Span) {
	t.spans = append(t.spans, s)
}

// CoveringSpan returns the smallest span containing every recorded span.
// The second return value is false when nothing was recorded.
func (t *Tracker) CoveringSpan() (span.Span, bool) {
	if len(t.spans) == 0 {
		return span.Span{}, false
	}

	result := t.spans[0]
	for _, s := range t.spans[1:] {
		result = result.Cover(s)
	}
	return result, true
}

// Reset clears all recorded spans.
func (t *Tracker) Reset() {
	t.spans = t.spans[:0]
}

// Len returns the number of recorded spans.
func (t *Tracker) Len() int {
	return len(t.spans)
}
