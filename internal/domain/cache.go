package domain

import (
	"context"
	"time"
)

// RateLimiter provides shared rate limiting across API instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
