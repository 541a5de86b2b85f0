package session

import (
	"context"
	"sync"
	"time"

	"collab-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter throttles login attempts per key. Allow records one attempt.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// RedisLimiter is a fixed-window limiter shared by every API instance.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return utils.HitWindow(ctx, l.rdb, l.prefix+key, l.limit, l.window)
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return utils.ResetWindow(ctx, l.rdb, l.prefix+key)
}

// MemoryLimiter is the single-process equivalent of RedisLimiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clock   func() time.Time
	windows map[string]memWindow
}

type memWindow struct {
	hits    int
	resetAt time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, clock: time.Now, windows: map[string]memWindow{}}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memWindow{resetAt: now.Add(l.window)}
	}
	w.hits++
	l.windows[key] = w
	return w.hits <= l.limit, w.resetAt.Sub(now), nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// NoLimit never throttles.
type NoLimit struct{}

func (NoLimit) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return true, 0, nil
}
func (NoLimit) Reset(ctx context.Context, key string) error { return nil }
