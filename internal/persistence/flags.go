package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const maintenanceModeKey = "maintenance_service:flags:maintenance_mode"

// RuntimeFlags stores process-wide toggles in Redis so every instance of the
// service observes the same state.
type RuntimeFlags struct {
	client *redis.Client
}

// NewRuntimeFlags builds the flag store.
func NewRuntimeFlags(r *Redis) *RuntimeFlags {
	if r == nil {
		return &RuntimeFlags{}
	}
	return &RuntimeFlags{client: r.Client}
}

// MaintenanceMode reports whether the service is in maintenance mode.
// A missing key or an unreachable Redis reads as "off".
func (f *RuntimeFlags) MaintenanceMode(ctx context.Context) bool {
	if f == nil || f.client == nil {
		return false
	}
	val, err := f.client.Get(ctx, maintenanceModeKey).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

// SetMaintenanceMode flips maintenance mode for all instances.
func (f *RuntimeFlags) SetMaintenanceMode(ctx context.Context, enabled bool) error {
	if f == nil || f.client == nil {
		return errors.New("redis client not configured")
	}
	val := "0"
	if enabled {
		val = "1"
	}
	return f.client.Set(ctx, maintenanceModeKey, val, 0).Err()
}

// Cache is a small JSON cache over Redis used for read-heavy aggregates
// such as the monthly leaderboard.
type Cache struct {
	client *redis.Client
}

// NewCache builds the cache; a nil Redis yields a disabled cache.
func NewCache(r *Redis) *Cache {
	if r == nil {
		return &Cache{}
	}
	return &Cache{client: r.Client}
}

// Get unmarshals the cached value into v, reporting whether a value was found.
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v as JSON under key with a TTL.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}
