// Package kv provides a generic thread-safe in-memory key-value store with an
// optional entry limit.
package kv

import "sync"

// Store is a thread-safe generic key-value store. A bounded store evicts the
// oldest inserted key once the limit is exceeded.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]V
	order []K
	limit int
}

// New creates an unbounded store.
func New[K comparable, V any]() *Store[K, V] {
	return NewBounded[K, V](0)
}

// NewBounded creates a store holding at most limit entries. A limit of zero
// or less means unbounded.
func NewBounded[K comparable, V any](limit int) *Store[K, V] {
	return &Store[K, V]{
		data:  make(map[K]V),
		limit: limit,
	}
}

// Get retrieves a value by key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

// Set stores a value by key, evicting the oldest entry if the store is full.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value)
}

// Delete removes a key from the store.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear removes all entries from the store.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
	s.order = nil
}

// Len returns the number of items in the store.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns all keys in insertion order.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, len(s.order))
	copy(keys, s.order)
	return keys
}

func (s *Store[K, V]) set(key K, value V) {
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = value

	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.data, oldest)
	}
}
