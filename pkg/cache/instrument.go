package cache

import (
	"context"
	"time"

	"github.com/matzehuels/provgraph/pkg/observability"
)

// instrumented reports every lookup and write to the registered cache hooks.
type instrumented struct {
	Cache
}

// Instrument wraps c so that hits, misses and writes reach
// observability.Cache(). The key kind ("result", "artifact") is the label.
func Instrument(c Cache) Cache {
	if _, ok := c.(*instrumented); ok {
		return c
	}
	return &instrumented{Cache: c}
}

func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, keyKind(key))
	} else {
		observability.Cache().OnCacheMiss(ctx, keyKind(key))
	}
	return data, hit, nil
}

func (c *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, keyKind(key), len(data))
	return nil
}
