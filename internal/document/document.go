// Package document is the host side of the comment blocks of one source
// document. It creates, updates and disposes blocks as the document's TeX
// comments change and forwards the blocks' host callbacks to a Listener.
//
// A Document is confined to the UI loop, like the blocks it owns.
package document

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/colonyops/texcomments/internal/core/comment"
	"github.com/colonyops/texcomments/internal/core/logging"
	"github.com/colonyops/texcomments/internal/core/span"
	"github.com/colonyops/texcomments/internal/core/uiloop"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/render"
	"github.com/colonyops/texcomments/internal/scan"
)

// Listener receives the host notifications of a document's blocks.
type Listener interface {
	TagsChanged(doc string, s span.Span)
	RenderFailed(doc string, blockID int, err error)
}

// BlockInfo is a point-in-time description of a block.
type BlockInfo struct {
	ID          int                 `json:"id"`
	State       comment.State       `json:"state"`
	DisplayMode comment.DisplayMode `json:"display_mode"`
	Text        string              `json:"text"`
	Span        span.Span           `json:"span"`
	Lines       span.LineSpan       `json:"lines"`
	CacheToken  string              `json:"cache_token,omitempty"`
	Width       int                 `json:"width,omitempty"`
	Height      int                 `json:"height,omitempty"`
}

// Document owns the comment blocks of one document.
type Document struct {
	name     string
	renderer render.Renderer
	zoom     *zoom.Setting
	exec     uiloop.Executor
	listener Listener
	ctx      context.Context
	log      zerolog.Logger

	blocks   []*comment.Block
	failures map[int]error
}

// New creates an empty document.
func New(name string, renderer render.Renderer, zs *zoom.Setting, exec uiloop.Executor, listener Listener, logger zerolog.Logger) *Document {
	return &Document{
		name:     name,
		renderer: renderer,
		zoom:     zs,
		exec:     exec,
		listener: listener,
		ctx:      logging.WithDocument(context.Background(), name),
		log:      logger.With().Str("document", name).Logger(),
		failures: make(map[int]error),
	}
}

// Name returns the document name.
func (d *Document) Name() string { return d.name }

// Sync reconciles the document's blocks with regions, given in document
// order. Blocks whose text is unchanged keep their image; the remaining
// blocks are reused in order for the remaining regions; leftovers are
// disposed and missing blocks are created.
func (d *Document) Sync(regions []comment.Region) {
	used := make([]bool, len(d.blocks))
	assigned := make([]*comment.Block, len(regions))

	for i, r := range regions {
		for j, b := range d.blocks {
			if !used[j] && b.Region().Text == r.Text {
				used[j] = true
				assigned[i] = b
				break
			}
		}
	}

	next := 0
	for i := range regions {
		if assigned[i] != nil {
			continue
		}
		for next < len(d.blocks) && used[next] {
			next++
		}
		if next < len(d.blocks) {
			used[next] = true
			assigned[i] = d.blocks[next]
		}
	}

	for j, b := range d.blocks {
		if !used[j] {
			d.log.Debug().Int("block", b.ID()).Msg("disposing block")
			delete(d.failures, b.ID())
			b.Dispose()
		}
	}

	for i, r := range regions {
		if assigned[i] == nil {
			assigned[i] = comment.New(r, comment.Options{
				Renderer: d.renderer,
				Zoom:     d.zoom,
				Executor: d.exec,
				Host:     d,
				Logger:   d.log,
				Context:  d.ctx,
			})
			continue
		}
		if assigned[i].Region().Text != r.Text {
			delete(d.failures, assigned[i].ID())
		}
		assigned[i].OnTextChanged(r)
	}

	d.blocks = assigned
}

// SyncSource scans src for TeX comments and syncs the blocks with them.
func (d *Document) SyncSource(src string) {
	found := scan.Comments(src)
	regions := make([]comment.Region, len(found))
	for i, c := range found {
		regions[i] = comment.Region{Text: c.Text, Span: c.Span, Lines: c.Lines}
	}
	d.Sync(regions)
}

// Blocks returns the blocks in document order.
func (d *Document) Blocks() []*comment.Block {
	out := make([]*comment.Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// BlockAt returns the block whose span contains pos.
func (d *Document) BlockAt(pos int) (*comment.Block, bool) {
	for _, b := range d.blocks {
		if b.Region().Span.Contains(pos) {
			return b, true
		}
	}
	return nil, false
}

// SetEditModeForAll enters or leaves edit mode on every block.
func (d *Document) SetEditModeForAll(editing bool) {
	for _, b := range d.blocks {
		b.RequestEditModeChange(editing)
	}
}

// InvalidateAll forces every block to render again.
func (d *Document) InvalidateAll() {
	for _, b := range d.blocks {
		delete(d.failures, b.ID())
		b.Invalidate()
	}
}

// Failure returns the last render failure of a block, if its latest request
// failed.
func (d *Document) Failure(blockID int) (error, bool) {
	err, ok := d.failures[blockID]
	return err, ok
}

// Settled reports whether every block is either shown or failed its latest
// render.
func (d *Document) Settled() bool {
	for _, b := range d.blocks {
		if b.State() == comment.StateShown {
			continue
		}
		if _, failed := d.failures[b.ID()]; failed && b.State() == comment.StateRendering {
			continue
		}
		return false
	}
	return true
}

// Snapshot describes every block in document order.
func (d *Document) Snapshot() []BlockInfo {
	out := make([]BlockInfo, 0, len(d.blocks))
	for _, b := range d.blocks {
		r := b.Region()
		info := BlockInfo{
			ID:          b.ID(),
			State:       b.State(),
			DisplayMode: b.DisplayMode(),
			Text:        r.Text,
			Span:        r.Span,
			Lines:       r.Lines,
		}
		info.CacheToken, _ = b.RevealCacheLocation()
		if img, ok := b.Image(); ok {
			info.Width, info.Height = img.Width, img.Height
		}
		out = append(out, info)
	}
	return out
}

// Close disposes every block.
func (d *Document) Close() {
	for _, b := range d.blocks {
		b.Dispose()
	}
	d.blocks = nil
	clear(d.failures)
}

// RefreshTags implements comment.Host.
func (d *Document) RefreshTags(s span.Span) {
	if d.listener != nil {
		d.listener.TagsChanged(d.name, s)
	}
}

// RenderSucceeded implements comment.Host.
func (d *Document) RenderSucceeded(id int) {
	delete(d.failures, id)
}

// RenderFailed implements comment.Host.
func (d *Document) RenderFailed(id int, err error) {
	d.failures[id] = err
	d.log.Warn().Err(err).Int("block", id).Msg("render failed")
	if d.listener != nil {
		d.listener.RenderFailed(d.name, id, err)
	}
}
