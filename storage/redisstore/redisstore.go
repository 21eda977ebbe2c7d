// Package redisstore backs storage.Store with Redis for deployments that
// share application state across page loads or server-rendered sessions.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jetd7/snapembed/storage"
	"github.com/redis/go-redis/v9"
)

// ErrNilClient is returned when the store is used without a client.
var ErrNilClient = errors.New("redis client is nil")

// Store is a storage.Store on top of a go-redis universal client.
type Store struct {
	client redis.UniversalClient
}

// Compile-time assertion: *Store implements storage.Store.
var _ storage.Store = (*Store)(nil)

// New wraps an existing client. The caller owns the client lifecycle.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, ErrNilClient
	}

	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}

	return value, true, nil
}

// Set implements storage.Store. A ttl <= 0 stores without expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return ErrNilClient
	}

	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}

	return nil
}

// Remove implements storage.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return ErrNilClient
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}

	return nil
}
