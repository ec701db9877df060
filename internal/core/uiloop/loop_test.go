package uiloop

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DrainRunsInOrder(t *testing.T) {
	l := New(zerolog.Nop())

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	require.Equal(t, 5, l.Pending())

	n := l.Drain()

	assert.Equal(t, 5, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_DrainRunsTasksPostedByTasks(t *testing.T) {
	l := New(zerolog.Nop())

	var got []string
	l.Post(func() {
		got = append(got, "outer")
		l.Post(func() { got = append(got, "inner") })
	})
	l.Post(func() { got = append(got, "second") })

	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []string{"outer", "second", "inner"}, got)
}

func TestLoop_PanicDoesNotStopQueue(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	ran := false
	l.Post(func() { panic("bad task") })
	l.Post(func() { ran = true })

	require.NotPanics(t, func() { l.Drain() })
	assert.True(t, ran)
	assert.Contains(t, buf.String(), "ui task panicked")
}

func TestLoop_PostFromManyGoroutines(t *testing.T) {
	l := New(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	var (
		mu    sync.Mutex
		count int
		wg    sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				l.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, l.Do(ctx, func() {}))

	mu.Lock()
	assert.Equal(t, 200, count)
	mu.Unlock()

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := New(zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_ReadyAfterPost(t *testing.T) {
	l := New(zerolog.Nop())

	select {
	case <-l.Ready():
		t.Fatal("ready before any post")
	default:
	}

	l.Post(func() {})
	l.Post(func() {})

	select {
	case <-l.Ready():
	case <-time.After(time.Second):
		t.Fatal("no wake-up after post")
	}
	assert.Equal(t, 2, l.Drain())
}
