package sharding

import (
	"github.com/cespare/xxhash/v2"
)

// ShardRouter maps logical names onto a fixed number of buckets.
// The count is fixed for the lifetime of a deployment: changing it
// remaps names onto different counter instances.
type ShardRouter struct {
	ShardCount int // Number of buckets
}

func NewShardRouter(shardCount int) *ShardRouter {
	return &ShardRouter{ShardCount: shardCount}
}

// Bucket hashes the name with xxhash64 and reduces it into [0, ShardCount).
// Distinct names may land in the same bucket and then share a counter.
func (r *ShardRouter) Bucket(name string) int {
	return int(xxhash.Sum64String(name) % uint64(r.ShardCount))
}

// StorageShard picks which storage database holds an actor namespace.
func StorageShard(namespace string, storageShards int) int {
	if storageShards <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(namespace) % uint64(storageShards))
}
