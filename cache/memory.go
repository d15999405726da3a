package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by a map.
//
// One lock guards the map and is held only for the duration of a single
// call, so entries are always replaced as a whole.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	now     func() time.Time
}

// NewMemoryStore builds an empty MemoryStore.
//
// Optional options:
//   - WithClock: time source used to compute expiry (default: time.Now)
func NewMemoryStore[T any](opts ...Option) *MemoryStore[T] {
	cfg := newConfig(opts)
	return &MemoryStore[T]{
		entries: make(map[string]Entry[T]),
		now:     cfg.now,
	}
}

// Get implements Store.
func (s *MemoryStore[T]) Get(_ context.Context, key string) (Entry[T], bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok, nil
}

// Put implements Store.
func (s *MemoryStore[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	e := Entry[T]{Value: value, ExpiresAt: s.now().Add(ttl)}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// RemoveIfExpired implements Store.
func (s *MemoryStore[T]) RemoveIfExpired(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.ExpiresAt.Before(now) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Keys implements Store.
func (s *MemoryStore[T]) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of entries, expired or not.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
