// Package render turns TeX comment text into images and caches them on disk.
//
// Comment blocks depend only on the Renderer interface. Manager is the
// production implementation: it typesets with star-tex, draws the DVI with
// Latin Modern glyph outlines and stores a PNG per distinct (formula, zoom) pair, returning the
// PNG path as the cache token.
package render

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrEmptyFormula is returned for comment text with nothing to render.
	ErrEmptyFormula = errors.New("empty formula")
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("render manager closed")
	// ErrBlankFormula is returned when typesetting produced no ink.
	ErrBlankFormula = errors.New("formula produced no output")
)

// Result is a rendered comment. Ownership of Image passes to the receiver.
type Result struct {
	Image  image.Image
	Width  int
	Height int
	// Scale is the custom zoom scale the image was rendered at.
	Scale float64
	// CacheToken locates the rendered artifact; opaque to callers.
	CacheToken string
}

// Callback receives the outcome of a render request. It may be invoked on
// any goroutine.
type Callback func(Result, error)

// Renderer produces images for comment text asynchronously.
type Renderer interface {
	// RequestRender starts rendering text and returns immediately. done is
	// called exactly once, never synchronously from within RequestRender.
	// Cancelling ctx is a hint that the result is no longer wanted.
	RequestRender(ctx context.Context, text string, done Callback)
}

// ScaleSource reports the zoom scale new renders should use.
type ScaleSource interface {
	Get() float64
}

// FixedScale is a ScaleSource that never changes.
type FixedScale float64

// Get implements ScaleSource.
func (f FixedScale) Get() float64 { return float64(f) }
