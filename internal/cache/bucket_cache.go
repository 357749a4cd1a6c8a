package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBucketCache shares resolved shard map entries between processes.
// Entries are keyed by bucket and written once, mirroring the shard map,
// so they never need invalidation.
type RedisBucketCache struct {
	rdb *redis.Client
}

func NewRedisBucketCache(rdb *redis.Client) *RedisBucketCache {
	return &RedisBucketCache{rdb: rdb}
}

func bucketKey(mapName string, bucket int) string {
	return fmt.Sprintf("counter:shardmap:%s:%d", mapName, bucket)
}

// Get returns the instance id cached for a bucket.
func (c *RedisBucketCache) Get(ctx context.Context, mapName string, bucket int) (string, bool, error) {
	val, err := c.rdb.Get(ctx, bucketKey(mapName, bucket)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

// Set records the instance id for a bucket if none is cached yet.
func (c *RedisBucketCache) Set(ctx context.Context, mapName string, bucket int, id string) error {
	return c.rdb.SetNX(ctx, bucketKey(mapName, bucket), id, 0).Err()
}

// NopBucketCache is used when no shared cache is configured.
type NopBucketCache struct{}

func (NopBucketCache) Get(context.Context, string, int) (string, bool, error) {
	return "", false, nil
}

func (NopBucketCache) Set(context.Context, string, int, string) error {
	return nil
}
