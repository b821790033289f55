package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/dontforget-backend/pkg/redis"
)

// Debouncer suppresses repeated proximity alerts for the same region and
// crossing direction within a cool-down window.
type Debouncer interface {
	// Allow reports whether an alert may fire now, and records the firing
	// when it does.
	Allow(ctx context.Context, regionID, direction string, window time.Duration) (bool, error)
}

// RedisDebouncer implements the cool-down with SETNX + TTL so multiple
// workers share one window.
type RedisDebouncer struct {
	client *redis.Client
}

// NewRedisDebouncer wraps the shared redis client.
func NewRedisDebouncer(client *redis.Client) *RedisDebouncer {
	return &RedisDebouncer{client: client}
}

func (d *RedisDebouncer) Allow(ctx context.Context, regionID, direction string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := d.client.DebounceKey(regionID, direction)
	return d.client.SetNX(ctx, key, "1", window)
}

// MemoryDebouncer keeps windows in-process. Used in tests and single-node
// dev runs without redis.
type MemoryDebouncer struct {
	mu    sync.Mutex
	fired map[string]time.Time
	now   func() time.Time
}

// NewMemoryDebouncer builds an in-process debouncer around the given clock.
func NewMemoryDebouncer(now func() time.Time) *MemoryDebouncer {
	if now == nil {
		now = time.Now
	}
	return &MemoryDebouncer{fired: map[string]time.Time{}, now: now}
}

func (d *MemoryDebouncer) Allow(_ context.Context, regionID, direction string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := regionID + ":" + direction
	now := d.now()
	if last, ok := d.fired[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	d.fired[key] = now
	return true, nil
}
