// Package cache provides Redis-backed ephemeral storage: a generic TTL
// cache abstraction and the single-use PKCE session store.
package cache

import (
	"context"
	"time"
)

// Cache is a minimal get/set/ttl abstraction. Call sites depend on this
// interface rather than a concrete client so the backing store can be
// swapped without touching them.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetDel retrieves and deletes key in one atomic step, so a value
	// can be consumed exactly once even under concurrent callers.
	GetDel(ctx context.Context, key string) (string, bool, error)
}
