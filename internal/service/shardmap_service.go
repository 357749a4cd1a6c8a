package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"counter-service/internal/actor"
	"counter-service/internal/entity"
	"counter-service/internal/repository"
	"counter-service/internal/sharding"
)

// BucketCache is a cache of shard map entries shared between processes.
type BucketCache interface {
	Get(ctx context.Context, mapName string, bucket int) (string, bool, error)
	Set(ctx context.Context, mapName string, bucket int, id string) error
}

// ShardMapService is the Shard-Map Actor. It owns the persisted
// bucket -> counter instance mapping and allocates each entry exactly once.
//
// Resolutions run one at a time in the shard map's mailbox, so two first
// touches of a bucket in this process cannot both allocate. The insert is
// also a compare-and-set on the storage key, which settles races with
// shard map actors living in other processes.
type ShardMapService struct {
	mapName string
	router  *sharding.ShardRouter
	store   StateStore
	actors  *actor.System
	shared  BucketCache
	newID   func() (string, error)
}

// NewShardMapService creates a new instance of ShardMapService
func NewShardMapService(mapName string, router *sharding.ShardRouter, store StateStore, actors *actor.System, shared BucketCache) *ShardMapService {
	return &ShardMapService{
		mapName: mapName,
		router:  router,
		store:   store,
		actors:  actors,
		shared:  shared,
		newID:   newInstanceID,
	}
}

// newInstanceID allocates a time-ordered UUIDv7.
func newInstanceID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *ShardMapService) namespace() string {
	return "shardmap:" + s.mapName
}

// Bucket returns the bucket a name hashes into.
func (s *ShardMapService) Bucket(name string) int {
	return s.router.Bucket(name)
}

// Resolve returns the counter instance id for a logical name, allocating
// one the first time the name's bucket is seen.
func (s *ShardMapService) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: missing name", entity.ErrBadRequest)
	}
	return s.ResolveBucket(ctx, s.router.Bucket(name))
}

// ResolveBucket is Resolve for an already computed bucket.
func (s *ShardMapService) ResolveBucket(ctx context.Context, bucket int) (string, error) {
	if bucket < 0 || bucket >= s.router.ShardCount {
		return "", fmt.Errorf("%w: bucket %d outside [0, %d)", entity.ErrBadRequest, bucket, s.router.ShardCount)
	}

	id, ok, err := s.shared.Get(ctx, s.mapName, bucket)
	if err != nil {
		logger.Warn().Err(err).Msgf("Error reading bucket %d from shared cache", bucket)
	} else if ok {
		resolutionsMetric.WithLabelValues("cache_hit").Inc()
		return id, nil
	}

	var allocated bool
	err = s.actors.Call(ctx, s.namespace(), func(ctx context.Context) error {
		var err error
		id, allocated, err = s.resolve(ctx, bucket)
		return err
	})
	if err != nil {
		resolutionsMetric.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msgf("Error resolving bucket %d", bucket)
		return "", fmt.Errorf("%w: bucket %d: %w", entity.ErrResolutionFailed, bucket, err)
	}
	if id == "" {
		resolutionsMetric.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: bucket %d has an empty instance id", entity.ErrResolutionFailed, bucket)
	}

	if allocated {
		resolutionsMetric.WithLabelValues("allocated").Inc()
		logger.Info().Msgf("Allocated counter %s for bucket %d", id, bucket)
	} else {
		resolutionsMetric.WithLabelValues("existing").Inc()
	}

	if err := s.shared.Set(ctx, s.mapName, bucket, id); err != nil {
		logger.Warn().Err(err).Msgf("Error writing bucket %d to shared cache", bucket)
	}

	return id, nil
}

// resolve runs inside the shard map's mailbox.
func (s *ShardMapService) resolve(ctx context.Context, bucket int) (string, bool, error) {
	ns := s.namespace()
	key := strconv.Itoa(bucket)

	id, err := s.store.Get(ctx, ns, key)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, repository.ErrKeyNotFound) {
		return "", false, err
	}

	candidate, err := s.newID()
	if err != nil {
		return "", false, fmt.Errorf("allocate instance id: %w", err)
	}

	stored, inserted, err := s.store.PutIfAbsent(ctx, ns, key, candidate)
	if err != nil {
		return "", false, err
	}
	if !inserted {
		logger.Info().Msgf("Bucket %d was allocated concurrently by another process", bucket)
	}

	return stored, inserted, nil
}

// Entries lists the persisted shard map ordered by bucket.
func (s *ShardMapService) Entries(ctx context.Context) ([]entity.ShardMapEntry, error) {
	var raw map[string]string
	err := s.actors.Call(ctx, s.namespace(), func(ctx context.Context) error {
		var err error
		raw, err = s.store.List(ctx, s.namespace())
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]entity.ShardMapEntry, 0, len(raw))
	for key, id := range raw {
		bucket, err := strconv.Atoi(key)
		if err != nil {
			logger.Warn().Msgf("Skipping shard map key %q", key)
			continue
		}
		entries = append(entries, entity.ShardMapEntry{Bucket: bucket, InstanceID: id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Bucket < entries[j].Bucket })

	return entries, nil
}
