package zoom

import (
	"bytes"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetting_DefaultScale(t *testing.T) {
	s := New(zerolog.Nop())
	assert.InDelta(t, 1.0, s.Get(), 0)
}

func TestSetting_SetNotifiesInSubscriptionOrder(t *testing.T) {
	s := New(zerolog.Nop())

	var got []string
	s.Subscribe(func(scale float64) {
		assert.InDelta(t, 1.25, scale, 0)
		got = append(got, "first")
	})
	s.Subscribe(func(scale float64) {
		assert.InDelta(t, 1.25, scale, 0)
		got = append(got, "second")
	})

	changed := s.Set(1.25)

	assert.True(t, changed)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.InDelta(t, 1.25, s.Get(), 0)
}

func TestSetting_SetSameValueNotifiesOnce(t *testing.T) {
	s := New(zerolog.Nop())

	calls := 0
	s.Subscribe(func(float64) { calls++ })

	assert.True(t, s.Set(1.5))
	assert.False(t, s.Set(1.5))
	assert.Equal(t, 1, calls)

	assert.False(t, s.Set(DefaultScale+0.5))
	assert.Equal(t, 1, calls)
}

func TestSetting_SetIgnoresNaN(t *testing.T) {
	s := New(zerolog.Nop())

	calls := 0
	s.Subscribe(func(float64) { calls++ })

	assert.False(t, s.Set(math.NaN()))
	assert.False(t, s.Set(math.NaN()))
	assert.Equal(t, 0, calls)
	assert.InDelta(t, DefaultScale, s.Get(), 0)
}

func TestSetting_Unsubscribe(t *testing.T) {
	s := New(zerolog.Nop())

	calls := 0
	sub := s.Subscribe(func(float64) { calls++ })
	require.Equal(t, 1, s.Subscribers())

	sub.Unsubscribe()
	sub.Unsubscribe()

	s.Set(2)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, s.Subscribers())
}

func TestSetting_UnsubscribeDuringNotification(t *testing.T) {
	s := New(zerolog.Nop())

	var second *Subscription
	secondCalls := 0
	thirdCalls := 0

	s.Subscribe(func(float64) { second.Unsubscribe() })
	second = s.Subscribe(func(float64) { secondCalls++ })
	s.Subscribe(func(float64) { thirdCalls++ })

	s.Set(1.1)

	assert.Equal(t, 0, secondCalls, "handler removed mid-notification must not run")
	assert.Equal(t, 1, thirdCalls)
	assert.Equal(t, 2, s.Subscribers())
}

func TestSetting_HandlerMayUnsubscribeItself(t *testing.T) {
	s := New(zerolog.Nop())

	calls := 0
	var sub *Subscription
	sub = s.Subscribe(func(float64) {
		calls++
		sub.Unsubscribe()
	})

	s.Set(1.5)
	s.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Subscribers())
}

func TestSetting_HandlerMaySubscribeDuringNotification(t *testing.T) {
	s := New(zerolog.Nop())

	lateCalls := 0
	s.Subscribe(func(float64) {
		s.Subscribe(func(float64) { lateCalls++ })
	})

	s.Set(1.5)
	assert.Equal(t, 0, lateCalls)

	s.Set(2)
	assert.Equal(t, 1, lateCalls)
}

func TestSetting_PanickingHandlerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	s := New(zerolog.New(&buf))

	var hookScale float64
	var hookRecovered any
	s.OnPanic(func(scale float64, recovered any) {
		hookScale = scale
		hookRecovered = recovered
	})

	after := 0
	s.Subscribe(func(float64) { panic("boom") })
	s.Subscribe(func(float64) { after++ })

	require.NotPanics(t, func() { s.Set(0.75) })

	assert.Equal(t, 1, after)
	assert.InDelta(t, 0.75, hookScale, 0)
	assert.Equal(t, "boom", hookRecovered)
	assert.Contains(t, buf.String(), "zoom subscriber panicked")
}

func TestPresets_ReturnsCopy(t *testing.T) {
	p := Presets()
	require.Contains(t, p, DefaultScale)

	p[0] = 42
	assert.NotContains(t, Presets(), 42.0)
}
