package domain

import (
	"context"
	"time"
)

// RateLimiter decides whether a keyed caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
