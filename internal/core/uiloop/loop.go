// Package uiloop provides the single execution context that owns comment
// block state. Work produced on other goroutines, such as render results, is
// posted onto the loop and executed there in FIFO order.
package uiloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Executor runs tasks on the UI-affinity context.
type Executor interface {
	// Post schedules fn to run on the UI context. It never blocks and may be
	// called from any goroutine, including from a task running on the loop.
	Post(fn func())
}

// Loop is an unbounded FIFO task queue drained by exactly one goroutine at a
// time, either through Run or through Drain. An external event loop can own
// the queue instead of Run by waiting on Ready and calling Drain.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running sync.Mutex
	log     zerolog.Logger
}

var _ Executor = (*Loop)(nil)

// New creates an idle loop.
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		log:  logger,
	}
}

// Post enqueues fn.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Ready is signalled after Post. A signal may cover several posts and may be
// left over from tasks an earlier Drain already ran.
func (l *Loop) Ready() <-chan struct{} {
	return l.wake
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run executes tasks on the calling goroutine until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Lock()
	defer l.running.Unlock()

	for {
		l.drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain executes every queued task on the calling goroutine, including tasks
// posted while draining, and returns how many ran.
func (l *Loop) Drain() int {
	l.running.Lock()
	defer l.running.Unlock()
	return l.drain()
}

func (l *Loop) drain() int {
	n := 0
	for {
		fn, ok := l.pop()
		if !ok {
			return n
		}
		l.exec(fn)
		n++
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Str("panic", fmt.Sprint(r)).Msg("ui task panicked")
		}
	}()
	fn()
}

// Do posts fn and blocks until it has run on the loop or ctx is done. It must
// not be called from a task running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
