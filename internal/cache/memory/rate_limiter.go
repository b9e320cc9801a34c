// Package memory provides process-local implementations of domain cache
// interfaces.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused per-key limiter is retained.
const idleTTL = 10 * time.Minute

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A limit of N per window refills at N/window and bursts up to N.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*entry
	now       func() time.Time
	lastSweep time.Time
}

type entry struct {
	lim      *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// NewRateLimiter returns an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow reports whether key may make another request. It never returns an
// error; the signature matches the distributed limiter.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	e, ok := rl.limiters[key]
	if !ok || e.limit != limit || e.window != window {
		e = &entry{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:  limit,
			window: window,
		}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleTTL {
		return
	}
	rl.lastSweep = now
	for k, e := range rl.limiters {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(rl.limiters, k)
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
