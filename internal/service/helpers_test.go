package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"counter-service/internal/actor"
	"counter-service/internal/entity"
	"counter-service/internal/repository"
	"counter-service/migrations"
)

// createTestStore opens a migrated SQLite-backed repository in a temp dir.
func createTestStore(t *testing.T) *repository.StateRepository {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.AutoMigrateActorStorage(0, "sqlite3", db))
	return repository.NewStateRepository([]*sql.DB{db}, repository.SQLite)
}

func createTestActors(t *testing.T) *actor.System {
	t.Helper()
	s := actor.NewSystem(64, 5*time.Second)
	t.Cleanup(s.Close)
	return s
}

// failingStore fails every call with a storage error.
type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: disk on fire", entity.ErrStorageFailure)
}

func (failingStore) Update(context.Context, string, string, repository.UpdateFunc) (string, error) {
	return "", fmt.Errorf("%w: disk on fire", entity.ErrStorageFailure)
}

func (failingStore) PutIfAbsent(context.Context, string, string, string) (string, bool, error) {
	return "", false, fmt.Errorf("%w: disk on fire", entity.ErrStorageFailure)
}

func (failingStore) List(context.Context, string) (map[string]string, error) {
	return nil, fmt.Errorf("%w: disk on fire", entity.ErrStorageFailure)
}

// countingStore records how often the wrapped store is touched.
type countingStore struct {
	StateStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingStore) Get(ctx context.Context, ns, key string) (string, error) {
	s.touch()
	return s.StateStore.Get(ctx, ns, key)
}

func (s *countingStore) Update(ctx context.Context, ns, key string, fn repository.UpdateFunc) (string, error) {
	s.touch()
	return s.StateStore.Update(ctx, ns, key, fn)
}

func (s *countingStore) PutIfAbsent(ctx context.Context, ns, key, value string) (string, bool, error) {
	s.touch()
	return s.StateStore.PutIfAbsent(ctx, ns, key, value)
}

// memoryBucketCache is an in-process stand-in for the redis bucket cache.
type memoryBucketCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemoryBucketCache() *memoryBucketCache {
	return &memoryBucketCache{entries: make(map[string]string)}
}

func (c *memoryBucketCache) Get(_ context.Context, mapName string, bucket int) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[fmt.Sprintf("%s:%d", mapName, bucket)]
	return id, ok, nil
}

func (c *memoryBucketCache) Set(_ context.Context, mapName string, bucket int, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%s:%d", mapName, bucket)
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = id
	}
	return nil
}

// slowAckStore commits through the wrapped store, then stalls before replying.
type slowAckStore struct {
	StateStore
	delay time.Duration
}

func (s slowAckStore) Update(ctx context.Context, ns, key string, fn repository.UpdateFunc) (string, error) {
	value, err := s.StateStore.Update(ctx, ns, key, fn)
	time.Sleep(s.delay)
	return value, err
}
