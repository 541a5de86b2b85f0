package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist remembers logged-out admin session ids until the session would have
// expired anyway.
type Denylist interface {
	Deny(ctx context.Context, jti string, until time.Time) error
	Denied(ctx context.Context, jti string) (bool, error)
}

type RedisDenylist struct {
	rdb    *redis.Client
	prefix string
	clock  func() time.Time
}

func NewRedisDenylist(rdb *redis.Client, prefix string) *RedisDenylist {
	return &RedisDenylist{rdb: rdb, prefix: prefix, clock: time.Now}
}

func (d *RedisDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.clock())
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.prefix+jti, 1, ttl).Err()
}

func (d *RedisDenylist) Denied(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type MemoryDenylist struct {
	mu    sync.Mutex
	clock func() time.Time
	until map[string]time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{clock: time.Now, until: map[string]time.Time{}}
}

func (d *MemoryDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.until[jti] = until
	return nil
}

func (d *MemoryDenylist) Denied(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.until[jti]
	if !ok {
		return false, nil
	}
	if !d.clock().Before(until) {
		delete(d.until, jti)
		return false, nil
	}
	return true, nil
}
