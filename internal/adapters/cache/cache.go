package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// DefaultTimeout bounds a single cache call
const DefaultTimeout = 5 * time.Second

// Cache is a short-TTL byte store. It is never authoritative.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// GetOrLoad is a read-through helper: a hit is decoded, a miss calls load and
// stores the result. Cache failures are logged and fall through to load.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	raw, ok, err := c.Get(cctx, key)
	cancel()
	if err != nil {
		log.Printf("⚠️ cache get %s: %v", key, err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.Printf("⚠️ cache decode %s: %v", key, err)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if raw, err := json.Marshal(v); err == nil {
		cctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		if err := c.Set(cctx, key, raw, ttl); err != nil {
			log.Printf("⚠️ cache set %s: %v", key, err)
		}
		cancel()
	}
	return v, nil
}

// Invalidate deletes keys, logging instead of failing. Deleting is idempotent.
func Invalidate(ctx context.Context, c Cache, keys ...string) {
	if len(keys) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
	defer cancel()
	if err := c.Delete(cctx, keys...); err != nil {
		log.Printf("⚠️ cache invalidate %v: %v", keys, err)
	}
}
