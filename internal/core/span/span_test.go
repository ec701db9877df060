package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_NormalisesReversedBounds(t *testing.T) {
	assert.Equal(t, Span{Start: 3, End: 9}, New(9, 3))
	assert.Equal(t, Span{Start: 4, End: 10}, FromLength(4, 6))
}

func TestSpan_Cover(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want Span
	}{
		{name: "disjoint", a: New(0, 2), b: New(5, 8), want: New(0, 8)},
		{name: "nested", a: New(0, 10), b: New(3, 4), want: New(0, 10)},
		{name: "overlapping", a: New(4, 9), b: New(2, 6), want: New(2, 9)},
		{name: "empty inside", a: New(7, 7), b: New(1, 3), want: New(1, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Cover(tt.b))
			assert.Equal(t, tt.want, tt.b.Cover(tt.a))
		})
	}
}

func TestSpan_Accessors(t *testing.T) {
	s := New(5, 8)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.IsEmpty())
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(8))
	assert.Equal(t, "[5,8)", s.String())
	assert.True(t, New(2, 2).IsEmpty())
	assert.Equal(t, 3, LineSpan{First: 4, Last: 6}.Count())
}
