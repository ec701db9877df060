// Package rendertest provides a scriptable render.Renderer for tests. Requests
// are recorded and completed explicitly by the test.
package rendertest

import (
	"context"
	"image"
	"sync"

	"github.com/colonyops/texcomments/internal/render"
)

// Request is one recorded RequestRender call.
type Request struct {
	Ctx  context.Context
	Text string

	mu   sync.Mutex
	done render.Callback
}

// Deliver completes the request successfully. It runs the callback on the
// calling goroutine. Delivering twice panics.
func (r *Request) Deliver(res render.Result) {
	r.complete(res, nil)
}

// Fail completes the request with err.
func (r *Request) Fail(err error) {
	r.complete(render.Result{}, err)
}

// Cancelled reports whether the requester cancelled the request context.
func (r *Request) Cancelled() bool {
	return r.Ctx.Err() != nil
}

func (r *Request) complete(res render.Result, err error) {
	r.mu.Lock()
	done := r.done
	r.done = nil
	r.mu.Unlock()

	if done == nil {
		panic("rendertest: request " + r.Text + " completed twice")
	}
	done(res, err)
}

// Renderer records render requests.
type Renderer struct {
	mu       sync.Mutex
	requests []*Request
}

var _ render.Renderer = (*Renderer)(nil)

// New returns an empty Renderer.
func New() *Renderer {
	return &Renderer{}
}

// RequestRender implements render.Renderer.
func (r *Renderer) RequestRender(ctx context.Context, text string, done render.Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, &Request{Ctx: ctx, Text: text, done: done})
}

// Requests returns a copy of the recorded requests in order.
func (r *Renderer) Requests() []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Len returns the number of recorded requests.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Last returns the most recent request, or nil.
func (r *Renderer) Last() *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

// Result builds a render result with a blank image of the given size.
func Result(width, height int, token string) render.Result {
	return render.Result{
		Image:      image.NewRGBA(image.Rect(0, 0, width, height)),
		Width:      width,
		Height:     height,
		Scale:      1,
		CacheToken: token,
	}
}
