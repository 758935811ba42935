// Package ratelimit implements fixed-window attempt counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const keyPrefix = "RATE_LIMIT@"

// Limiter allows Max hits per key inside each Window. The window starts at
// the first hit and is not extended by later ones.
type Limiter struct {
	redis  redis.UniversalClient
	name   string
	max    int
	window time.Duration
}

func New(client redis.UniversalClient, name string, max int, window time.Duration) *Limiter {
	return &Limiter{
		redis:  client,
		name:   name,
		max:    max,
		window: window,
	}
}

// Allow records a hit for key and returns how many hits are left in the
// current window. Once the count exceeds the limit it returns ErrRateLimited.
func (l *Limiter) Allow(ctx context.Context, key string) (int, error) {
	count, err := l.incrementWithTTL(ctx, l.key(key))
	if err != nil {
		return 0, err
	}
	if count > int64(l.max) {
		return 0, ErrRateLimited
	}
	return l.max - int(count), nil
}

// Limit is the number of hits allowed per window.
func (l *Limiter) Limit() int {
	return l.max
}

func (l *Limiter) key(key string) string {
	return keyPrefix + l.name + ":" + key
}

// incrementWithTTL bumps the counter and sets the window TTL in one
// transaction. NX leaves the TTL of an open window untouched.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
