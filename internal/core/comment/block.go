// Package comment implements the per-block rendering state machine for TeX
// comments.
//
// A Block is created by the host for every TeX comment region it discovers.
// It requests a render on creation and whenever its text changes, shows the
// rendered image once it arrives, and switches to the raw text while the user
// edits it. Every method must be called on the UI loop; render results coming
// back from other goroutines are posted onto the loop before they touch any
// block state.
package comment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/colonyops/texcomments/internal/core/edittrack"
	"github.com/colonyops/texcomments/internal/core/logging"
	"github.com/colonyops/texcomments/internal/core/span"
	"github.com/colonyops/texcomments/internal/core/uiloop"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/render"
)

// State is the display state of a block.
type State string

const (
	StateRendering State = "rendering" // waiting for an image, raw text visible
	StateShown     State = "shown"     // image replaces the raw text
	StateEditing   State = "editing"   // user is editing the raw text
)

// DisplayMode tells the host tagger whether to hide the original text.
type DisplayMode string

const (
	DisplayShowText DisplayMode = "show-text"
	DisplayHideText DisplayMode = "hide-text"
)

// ErrInvalidTransition is the panic value (wrapped) raised when a caller tries
// to force a state that can only be reached through the transition rules.
var ErrInvalidTransition = errors.New("invalid state transition")

// Region is the host's view of a comment block.
type Region struct {
	Text  string        // comment text without comment marks
	Span  span.Span     // character span in the host document
	Lines span.LineSpan // line span in the host document
}

// Change is one text buffer change reported by the host, in post-change
// document coordinates.
type Change struct {
	Start int
	End   int
}

// Host is the editor integration layer a block reports to.
type Host interface {
	// RefreshTags asks the host to re-tag and re-measure s.
	RefreshTags(s span.Span)
	// RenderFailed reports a failed render request for block id.
	RenderFailed(id int, err error)
	// RenderSucceeded reports that block id applied a new image.
	RenderSucceeded(id int)
}

// Options wires a Block to its collaborators.
type Options struct {
	Renderer render.Renderer
	Zoom     *zoom.Setting
	Executor uiloop.Executor
	Host     Host
	Logger   zerolog.Logger
	// Context is the parent of every render request context. Defaults to
	// context.Background.
	Context context.Context
}

var blockCounter atomic.Int64

// Block is the state machine of one TeX comment region.
type Block struct {
	id       int
	renderer render.Renderer
	baseCtx  context.Context
	exec     uiloop.Executor
	host     Host
	log      zerolog.Logger

	state   State
	region  Region
	tracker *edittrack.Tracker

	// result is the last successfully applied render; nil until the first
	// render lands or after an edit session discarded it.
	result     *render.Result
	cacheToken string

	changedWhileEditing bool

	version uint64
	pending bool
	cancel  context.CancelFunc

	customZoom float64
	zoomSub    *zoom.Subscription
	disposed   bool
}

// New creates a block for region and immediately requests its first render.
func New(region Region, opts Options) *Block {
	id := int(blockCounter.Add(1) - 1)

	b := &Block{
		id:         id,
		renderer:   opts.Renderer,
		baseCtx:    opts.Context,
		exec:       opts.Executor,
		host:       opts.Host,
		log:        opts.Logger.With().Int("block", id).Logger(),
		state:      StateRendering,
		region:     region,
		tracker:    edittrack.New(),
		customZoom: zoom.DefaultScale,
	}
	if b.host == nil {
		b.host = nopHost{}
	}
	if b.baseCtx == nil {
		b.baseCtx = context.Background()
	}

	if opts.Zoom != nil {
		b.customZoom = opts.Zoom.Get()
		b.zoomSub = opts.Zoom.Subscribe(b.zoomChanged)
	}

	b.requestRender()
	return b
}

// ID returns the block's debug index, unique within the process.
func (b *Block) ID() int { return b.id }

// State returns the current state.
func (b *Block) State() State { return b.state }

// Region returns the region the block currently represents.
func (b *Block) Region() Region { return b.region }

// DisplayMode returns whether the host should hide the original text.
func (b *Block) DisplayMode() DisplayMode {
	if b.state == StateShown {
		return DisplayHideText
	}
	return DisplayShowText
}

// Image returns the image to display. It reports false unless the block is
// shown.
func (b *Block) Image() (render.Result, bool) {
	if b.state != StateShown || b.result == nil {
		return render.Result{}, false
	}
	return *b.result, true
}

// DisplaySize returns the on-screen size of the shown image for the host
// editor's zoom level, given in percent. The image is reused across custom
// zoom changes; only its displayed size follows the current custom zoom.
func (b *Block) DisplaySize(hostZoomPercent float64) (width, height float64, ok bool) {
	res, ok := b.Image()
	if !ok {
		return 0, 0, false
	}

	factor := hostZoomPercent * 0.01
	if factor <= 0 {
		factor = 1
	}
	rescale := 1.0
	if res.Scale > 0 {
		rescale = b.customZoom / res.Scale
	}
	return float64(res.Width) / factor * rescale, float64(res.Height) / factor * rescale, true
}

// RevealCacheLocation returns the cache token of the last applied render.
func (b *Block) RevealCacheLocation() (string, bool) {
	return b.cacheToken, b.cacheToken != ""
}

// OnTextChanged updates the block with the host's latest view of its region.
// Outside edit mode a text change starts a new render while the last image
// stays visible. In edit mode the change is only recorded.
func (b *Block) OnTextChanged(region Region) {
	if b.disposed {
		return
	}

	changed := region.Text != b.region.Text
	b.region = region

	if b.state == StateEditing {
		if changed {
			b.changedWhileEditing = true
			b.tracker.Record(region.Span)
		}
		return
	}

	if changed {
		b.requestRender()
	}
}

// HandleBufferChanged records raw buffer changes made while editing. The
// recorded span runs from the earliest change start to the latest change end.
func (b *Block) HandleBufferChanged(changes []Change) {
	if b.disposed || b.state != StateEditing || len(changes) == 0 {
		return
	}

	s := span.New(changes[0].Start, changes[0].End)
	for _, c := range changes[1:] {
		s = s.Cover(span.New(c.Start, c.End))
	}
	b.tracker.Record(s)
	b.changedWhileEditing = true
}

// RequestEditModeChange enters or leaves edit mode. Requests that match the
// current mode are ignored.
func (b *Block) RequestEditModeChange(enterEditing bool) {
	if b.disposed {
		return
	}

	if enterEditing {
		if b.state == StateEditing {
			return
		}
		b.tracker.Reset()
		b.changedWhileEditing = false
		b.transition(StateEditing, b.region.Span)
		return
	}

	if b.state != StateEditing {
		return
	}

	dirty, ok := b.tracker.CoveringSpan()
	if !ok {
		dirty = b.region.Span
	}

	switch {
	case b.changedWhileEditing:
		b.changedWhileEditing = false
		b.result = nil
		b.requestRender()
		b.transition(StateRendering, dirty)
	case b.result == nil:
		if !b.pending {
			b.requestRender()
		}
		b.transition(StateRendering, dirty)
	default:
		b.transition(StateShown, dirty)
	}
}

// SetState requests shown or editing. StateRendering cannot be set directly
// and panics with an error wrapping ErrInvalidTransition.
func (b *Block) SetState(s State) {
	switch s {
	case StateShown:
		b.RequestEditModeChange(false)
	case StateEditing:
		b.RequestEditModeChange(true)
	default:
		panic(fmt.Errorf("%w: cannot set state %q", ErrInvalidTransition, s))
	}
}

// Invalidate discards any in-flight render and renders the current text
// again. The last image stays visible until the new one arrives.
func (b *Block) Invalidate() {
	if b.disposed {
		return
	}
	b.log.Debug().Msg("invalidated")
	b.requestRender()
}

// Dispose unsubscribes from zoom changes, cancels in-flight work and releases
// the image. Results arriving later are dropped.
func (b *Block) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	b.zoomSub.Unsubscribe()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.version++
	b.pending = false
	b.result = nil
}

// Disposed reports whether Dispose was called.
func (b *Block) Disposed() bool { return b.disposed }

func (b *Block) requestRender() {
	if b.cancel != nil {
		b.cancel()
	}

	b.version++
	version := b.version
	ctx, cancel := context.WithCancel(logging.WithBlockID(b.baseCtx, b.id))
	b.cancel = cancel
	b.pending = true

	b.log.Debug().Uint64("version", version).Msg("requesting render")

	b.renderer.RequestRender(ctx, b.region.Text, func(res render.Result, err error) {
		b.exec.Post(func() { b.applyResult(version, res, err) })
	})
}

func (b *Block) applyResult(version uint64, res render.Result, err error) {
	if b.disposed || version != b.version {
		b.log.Debug().
			Uint64("version", version).
			Uint64("current", b.version).
			Msg("dropping stale render result")
		return
	}

	b.pending = false
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if err != nil {
		b.log.Warn().Err(err).Uint64("version", version).Msg("render failed")
		b.host.RenderFailed(b.id, err)
		return
	}

	b.result = &res
	b.cacheToken = res.CacheToken
	b.host.RenderSucceeded(b.id)

	switch b.state {
	case StateRendering:
		b.transition(StateShown, b.region.Span)
	case StateShown:
		b.host.RefreshTags(b.region.Span)
	case StateEditing:
		// kept for when edit mode ends
	}
}

func (b *Block) zoomChanged(scale float64) {
	b.exec.Post(func() {
		if b.disposed {
			return
		}
		b.customZoom = scale
		if b.state == StateShown {
			b.host.RefreshTags(b.region.Span)
		}
	})
}

func (b *Block) transition(to State, dirty span.Span) {
	b.log.Debug().
		Str("from", string(b.state)).
		Str("to", string(to)).
		Msg("changing state")
	b.state = to
	b.host.RefreshTags(dirty)
}

type nopHost struct{}

func (nopHost) RefreshTags(span.Span)   {}
func (nopHost) RenderFailed(int, error) {}
func (nopHost) RenderSucceeded(int)     {}
