package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e memoryEntry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store. Expired entries are dropped lazily.
type MemoryStore[T any] struct {
	mu    sync.Mutex
	items map[string]memoryEntry[T]
	now   func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now func() time.Time
}

// WithClock overrides the clock used for TTL checks
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.now = now
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore[T any](opts ...MemoryOption) *MemoryStore[T] {
	o := memoryOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore[T]{
		items: make(map[string]memoryEntry[T]),
		now:   o.now,
	}
}

func (s *MemoryStore[T]) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// lookup must be called with mu held
func (s *MemoryStore[T]) lookup(key string) (T, bool) {
	e, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	if e.expired(s.now()) {
		delete(s.items, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookup(key)
	return v, ok, nil
}

func (s *MemoryStore[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryEntry[T]{value: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Update runs fn while holding the store lock. fn must not call back into s.
func (s *MemoryStore[T]) Update(_ context.Context, key string, ttl time.Duration, fn UpdateFunc[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.lookup(key)
	next, mutation, err := fn(current, exists)
	if err != nil {
		return err
	}

	switch mutation {
	case Save:
		s.items[key] = memoryEntry[T]{value: next, expiresAt: s.deadline(ttl)}
	case Remove:
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore[T]) Prune(_ context.Context, remove func(key string, value T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if e.expired(now) || remove(key, e.value) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live entries
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, e := range s.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
