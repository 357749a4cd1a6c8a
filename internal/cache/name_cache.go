package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// NameCache memoizes name -> counter instance id inside one process.
//
// It is a latency shortcut, not a source of truth: other processes keep
// their own copies and nothing invalidates them. It stays correct only
// because shard map entries are never rewritten once persisted, so a
// cached id can be missing but never wrong.
type NameCache struct {
	items *ttlcache.Cache[string, string]
	group singleflight.Group
}

// NewNameCache creates a cache holding at most capacity names for ttl each.
// A zero capacity means unbounded.
func NewNameCache(ttl time.Duration, capacity uint64) *NameCache {
	opts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, string](capacity))
	}
	return &NameCache{items: ttlcache.New[string, string](opts...)}
}

// Start runs the expiry loop until Stop is called.
func (c *NameCache) Start() {
	go c.items.Start()
}

func (c *NameCache) Stop() {
	c.items.Stop()
}

// Get returns the cached id for name.
func (c *NameCache) Get(name string) (string, bool) {
	item := c.items.Get(name)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Load returns the cached id for name or calls load to obtain it. Concurrent
// misses for the same name share one load. Errors and empty ids are not cached.
//
// The shared load does not inherit cancellation from whichever caller
// started it; each caller stops waiting when its own ctx ends.
func (c *NameCache) Load(ctx context.Context, name string, load func(ctx context.Context) (string, error)) (id string, hit bool, err error) {
	if id, ok := c.Get(name); ok {
		return id, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (interface{}, error) {
		id, err := load(loadCtx)
		if err != nil {
			return "", err
		}
		if id != "" {
			c.items.Set(name, id, ttlcache.DefaultTTL)
		}
		return id, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		return res.Val.(string), false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Len returns the number of cached names.
func (c *NameCache) Len() int {
	return c.items.Len()
}
