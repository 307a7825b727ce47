package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

type entry[T any] struct {
	value      T
	insertedAt time.Time
}

// Store is an in-memory TTL cache safe for concurrent use. Expiry is checked
// on read; stale entries are deleted lazily and by the periodic Sweep.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   func() time.Time
}

func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key derives the cache key for an article title.
func Key(title string) string {
	sum := md5.Sum([]byte(title))
	return hex.EncodeToString(sum[:])
}

// Get returns the value for key if present and fresh. A stale entry is
// removed and reported as absent.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if s.now().Sub(e.insertedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// refreshed the entry since the read above.
		if e2, ok2 := s.items[key]; ok2 && s.now().Sub(e2.insertedAt) >= s.ttl {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put inserts or replaces the value for key.
func (s *Store[T]) Put(key string, value T) {
	s.mu.Lock()
	s.items[key] = entry[T]{value: value, insertedAt: s.now()}
	s.mu.Unlock()
}

// Len returns the number of entries, fresh or not.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep removes every stale entry.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := s.now()
	for k, e := range s.items {
		if now.Sub(e.insertedAt) >= s.ttl {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// SetNowFunc replaces the clock, for tests.
func (s *Store[T]) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
