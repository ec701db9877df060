package comment

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/texcomments/internal/core/span"
	"github.com/colonyops/texcomments/internal/core/uiloop"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/render/rendertest"
)

type recordingHost struct {
	refreshed []span.Span
	failures  []error
	succeeded []int
}

func (h *recordingHost) RefreshTags(s span.Span) {
	h.refreshed = append(h.refreshed, s)
}

func (h *recordingHost) RenderFailed(_ int, err error) {
	h.failures = append(h.failures, err)
}

func (h *recordingHost) RenderSucceeded(id int) {
	h.succeeded = append(h.succeeded, id)
}

func (h *recordingHost) lastRefresh(t *testing.T) span.Span {
	t.Helper()
	require.NotEmpty(t, h.refreshed, "expected a tag refresh")
	return h.refreshed[len(h.refreshed)-1]
}

type harness struct {
	loop     *uiloop.Loop
	renderer *rendertest.Renderer
	zoom     *zoom.Setting
	host     *recordingHost
}

func newHarness() *harness {
	return &harness{
		loop:     uiloop.New(zerolog.Nop()),
		renderer: rendertest.New(),
		zoom:     zoom.New(zerolog.Nop()),
		host:     &recordingHost{},
	}
}

func (h *harness) newBlock(text string, s span.Span) *Block {
	return New(Region{Text: text, Span: s}, Options{
		Renderer: h.renderer,
		Zoom:     h.zoom,
		Executor: h.loop,
		Host:     h.host,
		Logger:   zerolog.Nop(),
	})
}

func (h *harness) deliver(req *rendertest.Request, w, ht int, token string) {
	req.Deliver(rendertest.Result(w, ht, token))
	h.loop.Drain()
}

// shownBlock returns a block that has completed its first render.
func (h *harness) shownBlock(t *testing.T, text string, s span.Span) *Block {
	t.Helper()
	b := h.newBlock(text, s)
	h.deliver(h.renderer.Last(), 10, 20, "first.png")
	require.Equal(t, StateShown, b.State())
	return b
}

func requireInvalidTransition(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}()
	fn()
}

func TestBlock_CreationRendersThenShows(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x^2", span.New(0, 6))

	assert.Equal(t, StateRendering, b.State())
	assert.Equal(t, DisplayShowText, b.DisplayMode())
	_, ok := b.Image()
	assert.False(t, ok)
	require.Equal(t, 1, h.renderer.Len())
	assert.Equal(t, "x^2", h.renderer.Last().Text)

	h.deliver(h.renderer.Last(), 10, 20, "cache/x2.png")

	assert.Equal(t, StateShown, b.State())
	assert.Equal(t, DisplayHideText, b.DisplayMode())
	img, ok := b.Image()
	require.True(t, ok)
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, 20, img.Height)

	token, ok := b.RevealCacheLocation()
	assert.True(t, ok)
	assert.Equal(t, "cache/x2.png", token)
	assert.Equal(t, span.New(0, 6), h.host.lastRefresh(t))
}

func TestBlock_ResultIsAppliedOnLoop(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x", span.New(0, 1))

	h.renderer.Last().Deliver(rendertest.Result(4, 4, "x.png"))

	assert.Equal(t, StateRendering, b.State(), "result must wait for the loop")
	assert.Equal(t, 1, h.loop.Pending())

	h.loop.Drain()
	assert.Equal(t, StateShown, b.State())
}

func TestBlock_EditWithChangesRerendersAndReportsDirtySpan(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x^2", span.New(5, 8))

	b.RequestEditModeChange(true)
	assert.Equal(t, StateEditing, b.State())
	assert.Equal(t, 1, h.renderer.Len(), "entering edit mode must not render")

	b.OnTextChanged(Region{Text: "x^3", Span: span.New(5, 8)})
	assert.Equal(t, 1, h.renderer.Len(), "edits are not rendered while editing")

	b.RequestEditModeChange(false)

	assert.Equal(t, StateRendering, b.State())
	require.Equal(t, 2, h.renderer.Len())
	assert.Equal(t, "x^3", h.renderer.Last().Text)
	assert.Equal(t, span.New(5, 8), h.host.lastRefresh(t))

	h.deliver(h.renderer.Last(), 12, 20, "x3.png")
	assert.Equal(t, StateShown, b.State())
	token, _ := b.RevealCacheLocation()
	assert.Equal(t, "x3.png", token)
}

func TestBlock_EditWithoutChangesKeepsImage(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "a", span.New(0, 10))

	b.RequestEditModeChange(true)
	_, ok := b.Image()
	assert.False(t, ok, "image is never shown while editing")

	b.RequestEditModeChange(false)

	assert.Equal(t, StateShown, b.State())
	assert.Equal(t, 1, h.renderer.Len())
	img, ok := b.Image()
	require.True(t, ok)
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, span.New(0, 10), h.host.lastRefresh(t))
}

func TestBlock_DirtySpanCoversAllEdits(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "a", span.New(0, 100))

	b.RequestEditModeChange(true)
	b.OnTextChanged(Region{Text: "ab", Span: span.New(40, 60)})
	b.HandleBufferChanged([]Change{{Start: 70, End: 72}, {Start: 45, End: 46}})
	b.OnTextChanged(Region{Text: "abc", Span: span.New(30, 50)})
	b.RequestEditModeChange(false)

	assert.Equal(t, span.New(30, 72), h.host.lastRefresh(t))
}

func TestBlock_EnterEditingTwiceIsIdempotent(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "a", span.New(0, 100))

	b.RequestEditModeChange(true)
	b.HandleBufferChanged([]Change{{Start: 12, End: 14}})
	refreshes := len(h.host.refreshed)

	b.RequestEditModeChange(true)
	assert.Len(t, h.host.refreshed, refreshes, "second entry must not transition")

	b.RequestEditModeChange(false)
	assert.Equal(t, span.New(12, 14), h.host.lastRefresh(t), "recorded edits survive a repeated entry")
	assert.Equal(t, StateRendering, b.State())
}

func TestBlock_LeavingWhenNotEditingIsNoop(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "a", span.New(0, 1))
	refreshes := len(h.host.refreshed)

	b.RequestEditModeChange(false)

	assert.Equal(t, StateShown, b.State())
	assert.Len(t, h.host.refreshed, refreshes)
}

func TestBlock_EditRoundTripStillRerenders(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x^2", span.New(0, 3))

	b.RequestEditModeChange(true)
	b.OnTextChanged(Region{Text: "x^3", Span: span.New(0, 3)})
	b.OnTextChanged(Region{Text: "x^2", Span: span.New(0, 3)})
	b.RequestEditModeChange(false)

	assert.Equal(t, StateRendering, b.State())
	assert.Equal(t, 2, h.renderer.Len())
	assert.Equal(t, "x^2", h.renderer.Last().Text)
}

func TestBlock_BufferChangesIgnoredOutsideEditing(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "a", span.New(0, 10))

	b.HandleBufferChanged([]Change{{Start: 1, End: 2}})
	b.RequestEditModeChange(true)
	b.HandleBufferChanged(nil)
	b.RequestEditModeChange(false)

	assert.Equal(t, StateShown, b.State())
	assert.Equal(t, span.New(0, 10), h.host.lastRefresh(t))
}

func TestBlock_InvalidateTwiceDropsStaleResult(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))

	b.Invalidate()
	first := h.renderer.Last()
	b.Invalidate()
	second := h.renderer.Last()
	require.NotSame(t, first, second)

	assert.True(t, first.Cancelled(), "superseded request is cancelled")
	assert.False(t, second.Cancelled())

	h.deliver(first, 99, 99, "stale.png")

	img, ok := b.Image()
	require.True(t, ok)
	assert.Equal(t, 10, img.Width, "stale result must not replace the image")
	token, _ := b.RevealCacheLocation()
	assert.Equal(t, "first.png", token)

	h.deliver(second, 30, 40, "fresh.png")

	img, ok = b.Image()
	require.True(t, ok)
	assert.Equal(t, 30, img.Width)
	token, _ = b.RevealCacheLocation()
	assert.Equal(t, "fresh.png", token)
}

func TestBlock_StaleDeliveriesNeverMutateState(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for range 20 {
		h := newHarness()
		b := h.shownBlock(t, "q", span.New(0, 1))

		n := 2 + r.IntN(6)
		for i := range n {
			if i%2 == 0 {
				b.Invalidate()
			} else {
				b.OnTextChanged(Region{Text: "q" + string(rune('a'+i)), Span: span.New(0, 2)})
			}
		}

		reqs := h.renderer.Requests()
		stale := reqs[1 : len(reqs)-1]
		r.Shuffle(len(stale), func(i, j int) { stale[i], stale[j] = stale[j], stale[i] })

		for _, req := range stale {
			h.deliver(req, 77, 77, "stale.png")
			img, ok := b.Image()
			require.True(t, ok)
			require.Equal(t, 10, img.Width)
			require.Equal(t, StateShown, b.State())
		}

		h.deliver(reqs[len(reqs)-1], 50, 5, "latest.png")
		img, ok := b.Image()
		require.True(t, ok)
		assert.Equal(t, 50, img.Width)
	}
}

func TestBlock_TextChangeKeepsShowingLastImage(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))

	b.OnTextChanged(Region{Text: "y", Span: span.New(0, 1)})

	assert.Equal(t, StateShown, b.State())
	_, ok := b.Image()
	assert.True(t, ok)
	require.Equal(t, 2, h.renderer.Len())
	assert.Equal(t, "y", h.renderer.Last().Text)
}

func TestBlock_SameTextUpdatesSpanOnly(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))

	b.OnTextChanged(Region{Text: "x", Span: span.New(10, 11), Lines: span.LineSpan{First: 2, Last: 2}})

	assert.Equal(t, 1, h.renderer.Len())
	assert.Equal(t, span.New(10, 11), b.Region().Span)
	assert.Equal(t, 2, b.Region().Lines.First)
}

func TestBlock_ResultWhileEditingIsKept(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x", span.New(0, 1))

	b.RequestEditModeChange(true)
	h.deliver(h.renderer.Last(), 8, 9, "x.png")

	assert.Equal(t, StateEditing, b.State())
	_, ok := b.Image()
	assert.False(t, ok)

	b.RequestEditModeChange(false)

	assert.Equal(t, StateShown, b.State())
	assert.Equal(t, 1, h.renderer.Len())
	img, ok := b.Image()
	require.True(t, ok)
	assert.Equal(t, 8, img.Width)
}

func TestBlock_LeavingEditWhileRenderPendingDoesNotRequestAgain(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x", span.New(0, 1))

	b.RequestEditModeChange(true)
	b.RequestEditModeChange(false)

	assert.Equal(t, StateRendering, b.State())
	assert.Equal(t, 1, h.renderer.Len())
}

func TestBlock_RenderFailure(t *testing.T) {
	h := newHarness()
	b := h.newBlock(`\bad`, span.New(0, 4))

	boom := errors.New("undefined control sequence")
	h.renderer.Last().Fail(boom)
	h.loop.Drain()

	assert.Equal(t, StateRendering, b.State())
	require.Len(t, h.host.failures, 1)
	assert.ErrorIs(t, h.host.failures[0], boom)
	assert.Equal(t, 1, h.renderer.Len(), "failures are not retried")

	// Leaving edit mode with nothing in flight asks for a fresh render.
	b.RequestEditModeChange(true)
	b.RequestEditModeChange(false)
	assert.Equal(t, 2, h.renderer.Len())
}

func TestBlock_RenderFailureKeepsLastGoodImage(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))

	b.OnTextChanged(Region{Text: `x^`, Span: span.New(0, 2)})
	h.renderer.Last().Fail(errors.New("missing $"))
	h.loop.Drain()

	assert.Equal(t, StateShown, b.State())
	img, ok := b.Image()
	require.True(t, ok)
	assert.Equal(t, 10, img.Width)
	assert.Len(t, h.host.failures, 1)
}

func TestBlock_ReportsSuccessOnlyForItself(t *testing.T) {
	h := newHarness()
	a := h.shownBlock(t, "a", span.New(0, 1))
	b := h.shownBlock(t, "b", span.New(2, 3))
	h.host.succeeded = nil

	a.OnTextChanged(Region{Text: `a^`, Span: span.New(0, 2)})
	h.renderer.Last().Fail(errors.New("missing $"))
	h.loop.Drain()
	assert.Empty(t, h.host.succeeded)

	b.Invalidate()
	h.deliver(h.renderer.Last(), 10, 20, "b.png")

	assert.Equal(t, []int{b.ID()}, h.host.succeeded)
}

func TestBlock_SetState(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))

	b.SetState(StateEditing)
	assert.Equal(t, StateEditing, b.State())

	b.SetState(StateShown)
	assert.Equal(t, StateShown, b.State())

	requireInvalidTransition(t, func() { b.SetState(StateRendering) })
	requireInvalidTransition(t, func() { b.SetState(State("hidden")) })
	assert.Equal(t, StateShown, b.State())
}

func TestBlock_ZoomRescalesWithoutRerender(t *testing.T) {
	h := newHarness()
	b := h.shownBlock(t, "x", span.New(0, 1))
	refreshes := len(h.host.refreshed)

	w, ht, ok := b.DisplaySize(100)
	require.True(t, ok)
	assert.InDelta(t, 10, w, 1e-9)
	assert.InDelta(t, 20, ht, 1e-9)

	w, _, _ = b.DisplaySize(200)
	assert.InDelta(t, 5, w, 1e-9)

	h.zoom.Set(2)
	h.loop.Drain()

	assert.Equal(t, 1, h.renderer.Len(), "zoom must not re-render")
	assert.Len(t, h.host.refreshed, refreshes+1)
	w, ht, _ = b.DisplaySize(100)
	assert.InDelta(t, 20, w, 1e-9)
	assert.InDelta(t, 40, ht, 1e-9)
}

func TestBlock_DisplaySizeUnavailableUnlessShown(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x", span.New(0, 1))

	_, _, ok := b.DisplaySize(100)
	assert.False(t, ok)
}

func TestBlock_Dispose(t *testing.T) {
	h := newHarness()
	b := h.newBlock("x", span.New(0, 1))
	require.Equal(t, 1, h.zoom.Subscribers())
	req := h.renderer.Last()

	b.Dispose()
	b.Dispose()

	assert.True(t, b.Disposed())
	assert.Equal(t, 0, h.zoom.Subscribers())
	assert.True(t, req.Cancelled())

	h.deliver(req, 10, 10, "late.png")
	_, ok := b.Image()
	assert.False(t, ok)
	_, ok = b.RevealCacheLocation()
	assert.False(t, ok)

	b.Invalidate()
	b.OnTextChanged(Region{Text: "y"})
	b.RequestEditModeChange(true)
	assert.Equal(t, 1, h.renderer.Len())
	assert.Equal(t, StateRendering, b.State())
}

func TestBlock_ResultFromAnotherGoroutine(t *testing.T) {
	h := newHarness()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.loop.Run(ctx) }()

	var b *Block
	require.NoError(t, h.loop.Do(ctx, func() { b = h.newBlock("x", span.New(0, 1)) }))

	go h.renderer.Last().Deliver(rendertest.Result(3, 3, "x.png"))

	require.Eventually(t, func() bool {
		var state State
		_ = h.loop.Do(ctx, func() { state = b.State() })
		return state == StateShown
	}, time.Second, 5*time.Millisecond)
}

func TestBlock_IDsAreUnique(t *testing.T) {
	h := newHarness()
	a := h.newBlock("a", span.New(0, 1))
	b := h.newBlock("b", span.New(2, 3))

	assert.NotEqual(t, a.ID(), b.ID())
}
