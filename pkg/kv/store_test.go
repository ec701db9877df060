package kv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSet(t *testing.T) {
	s := New[string, int]()

	s.Set("foo", 42)
	val, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	_, ok = s.Get("bar")
	assert.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	s := New[string, string]()
	s.Set("key", "value")
	s.Set("other", "value")

	s.Delete("key")
	s.Delete("missing")

	_, ok := s.Get("key")
	assert.False(t, ok)
	assert.Equal(t, []string{"other"}, s.Keys())
}

func TestStore_Clear(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
}

func TestStore_KeysInInsertionOrder(t *testing.T) {
	s := New[string, int]()
	s.Set("c", 3)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 10)

	assert.Equal(t, []string{"c", "a", "b"}, s.Keys())
	val, _ := s.Get("a")
	assert.Equal(t, 10, val)
}

func TestStore_BoundedEvictsOldest(t *testing.T) {
	s := NewBounded[string, int](2)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b", "c"}, s.Keys())
}

func TestStore_Concurrent(t *testing.T) {
	s := NewBounded[int, int](50)
	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Set(n, n*2)
			s.Get(n)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
