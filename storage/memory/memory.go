// Package memory provides an in-process storage.Store used as the default
// backend and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jetd7/snapembed/storage"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store is a mutex-guarded map with lazy expiry.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Compile-time assertion: *Store implements storage.Store.
var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements storage.Store. Expired entries are removed on read.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}

	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.entries, key)

		return "", false, nil
	}

	return e.value, true, nil
}

// Set implements storage.Store.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.entries[key] = e

	return nil
}

// Remove implements storage.Store.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}
