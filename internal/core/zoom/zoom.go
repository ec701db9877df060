// Package zoom provides the custom zoom scale shared by every comment block
// in the process.
//
// A single Setting is constructed at startup and handed to each block. Blocks
// subscribe on construction and unsubscribe on disposal.
package zoom

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultScale is the scale a new Setting starts with (100%).
const DefaultScale = 1.0

// presets is the discrete zoom menu offered to users.
var presets = []float64{0.5, 0.75, 0.9, 1.0, 1.1, 1.25, 1.5, 1.75, 2.0, 3.0}

// Presets returns the zoom scales offered in zoom menus.
func Presets() []float64 {
	out := make([]float64, len(presets))
	copy(out, presets)
	return out
}

// Handler receives the new scale after a change.
type Handler func(scale float64)

// Subscription is returned by Subscribe and removes the handler when
// Unsubscribe is called.
type Subscription struct {
	setting *Setting
	handler Handler
	active  atomic.Bool
}

// Unsubscribe removes the handler. Notifications started after it returns
// never invoke the handler, and neither does the rest of a notification
// running on the same goroutine. A Set running concurrently on another
// goroutine may still deliver one last call. Calling it more than once is a
// no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.setting.remove(s)
}

// Setting holds the zoom scale and notifies subscribers when it changes.
//
// Get, Set and Subscribe are safe for concurrent use. Handlers are invoked
// outside the lock so they may call back into the Setting.
type Setting struct {
	mu      sync.Mutex
	scale   float64
	subs    []*Subscription
	onPanic []func(scale float64, recovered any)
	log     zerolog.Logger
}

// New returns a Setting at DefaultScale.
func New(logger zerolog.Logger) *Setting {
	return NewWithScale(DefaultScale, logger)
}

// NewWithScale returns a Setting starting at scale.
func NewWithScale(scale float64, logger zerolog.Logger) *Setting {
	return &Setting{
		scale: scale,
		log:   logger,
	}
}

// Get returns the current scale.
func (s *Setting) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// Set stores scale and, if it differs from the current value, notifies all
// subscribers in subscription order before returning. It reports whether the
// value changed. NaN is ignored.
func (s *Setting) Set(scale float64) bool {
	if math.IsNaN(scale) {
		return false
	}

	s.mu.Lock()
	if s.scale == scale {
		s.mu.Unlock()
		return false
	}
	s.scale = scale
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.log.Debug().Float64("scale", scale).Int("subscribers", len(subs)).Msg("zoom changed")

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		s.invoke(sub.handler, scale)
	}
	return true
}

// Subscribe registers h to be called on every change.
func (s *Setting) Subscribe(h Handler) *Subscription {
	sub := &Subscription{setting: s, handler: h}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// Subscribers returns the number of active subscriptions.
func (s *Setting) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// OnPanic registers a hook that fires when a handler panics.
func (s *Setting) OnPanic(fn func(scale float64, recovered any)) {
	s.mu.Lock()
	s.onPanic = append(s.onPanic, fn)
	s.mu.Unlock()
}

func (s *Setting) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Setting) invoke(h Handler, scale float64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Float64("scale", scale).
				Str("panic", fmt.Sprint(r)).
				Msg("zoom subscriber panicked")
			s.runOnPanic(scale, r)
		}
	}()
	h(scale)
}

func (s *Setting) runOnPanic(scale float64, recovered any) {
	s.mu.Lock()
	hooks := make([]func(float64, any), len(s.onPanic))
	copy(hooks, s.onPanic)
	s.mu.Unlock()
	for _, fn := range hooks {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(scale, recovered)
		}()
	}
}
