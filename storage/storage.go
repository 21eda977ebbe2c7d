// Package storage defines the namespaced key-value contract the lifecycle
// tracker persists application state through. Values are opaque strings with
// an optional TTL.
package storage

import (
	"context"
	"time"
)

// Store is a TTL-aware key-value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Namespaced returns a view of store with every key prefixed.
//
//nolint:ireturn
func Namespaced(store Store, prefix string) Store {
	return &namespaced{inner: store, prefix: prefix}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n *namespaced) key(key string) string {
	return n.prefix + ":" + key
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *namespaced) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return n.inner.Set(ctx, n.key(key), value, ttl)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.key(key))
}
