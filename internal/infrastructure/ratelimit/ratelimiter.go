package ratelimit

import (
	"context"
	"time"
)

// RateLimiter enforces at most limit events per sliding window for a key.
// The sync engine uses it with limit=1 and a 10-minute window to guarantee
// a single sync in flight per account.
type RateLimiter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error)
	Remaining(ctx context.Context, key string, window time.Duration, limit int) (int64, error)
	Reset(ctx context.Context, key string) error
}
