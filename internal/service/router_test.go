package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counter-service/internal/cache"
	"counter-service/internal/entity"
	"counter-service/internal/sharding"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	id    string
	err   error
}

func (r *fakeResolver) Resolve(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.id, r.err
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	value int64
	err   error
}

func (d *fakeDispatcher) Apply(ctx context.Context, id string, op entity.Operation) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.value, d.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.CounterEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event entity.CounterEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func TestRouter_MissingNameTouchesNothing(t *testing.T) {
	resolver := &fakeResolver{id: "X"}
	counters := &fakeDispatcher{}
	r := NewRouter(resolver, counters, cache.NewNameCache(time.Minute, 10), nil)

	_, err := r.Handle(context.Background(), "", entity.OpIncrement)
	assert.ErrorIs(t, err, entity.ErrBadRequest)
	assert.Zero(t, resolver.Calls())
	assert.Zero(t, counters.calls)
}

func TestRouter_UnknownOperationTouchesNothing(t *testing.T) {
	resolver := &fakeResolver{id: "X"}
	counters := &fakeDispatcher{}
	r := NewRouter(resolver, counters, nil, nil)

	_, err := r.Handle(context.Background(), "A", entity.Operation("explode"))
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Zero(t, resolver.Calls())
	assert.Zero(t, counters.calls)
}

func TestRouter_CachesResolution(t *testing.T) {
	resolver := &fakeResolver{id: "X"}
	counters := &fakeDispatcher{value: 5}
	r := NewRouter(resolver, counters, cache.NewNameCache(time.Minute, 10), nil)

	for i := 0; i < 3; i++ {
		res, err := r.Handle(context.Background(), "A", entity.OpRead)
		require.NoError(t, err)
		assert.Equal(t, entity.CounterResult{InstanceID: "X", Name: "A", Value: 5}, *res)
	}
	assert.Equal(t, 1, resolver.Calls())
}

func TestRouter_WithoutCacheAlwaysResolves(t *testing.T) {
	resolver := &fakeResolver{id: "X"}
	r := NewRouter(resolver, &fakeDispatcher{}, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := r.Handle(context.Background(), "A", entity.OpRead)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, resolver.Calls())
}

func TestRouter_ResolutionFailureIsLabeled(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("shard map unreachable")}
	counters := &fakeDispatcher{}
	r := NewRouter(resolver, counters, cache.NewNameCache(time.Minute, 10), nil)

	_, err := r.Handle(context.Background(), "A", entity.OpIncrement)
	assert.ErrorIs(t, err, entity.ErrResolutionFailed)
	assert.Zero(t, counters.calls)

	// failures are not memoized
	resolver.err = nil
	resolver.id = "X"
	_, err = r.Handle(context.Background(), "A", entity.OpIncrement)
	assert.NoError(t, err)
}

func TestRouter_EmptyIDIsResolutionFailure(t *testing.T) {
	counters := &fakeDispatcher{}
	r := NewRouter(&fakeResolver{id: ""}, counters, cache.NewNameCache(time.Minute, 10), nil)

	_, err := r.Handle(context.Background(), "A", entity.OpIncrement)
	assert.ErrorIs(t, err, entity.ErrResolutionFailed)
	assert.Zero(t, counters.calls)
}

func TestRouter_DispatchFailurePropagates(t *testing.T) {
	counters := &fakeDispatcher{err: entity.ErrTimeout}
	events := &recordingPublisher{}
	r := NewRouter(&fakeResolver{id: "X"}, counters, nil, events)

	res, err := r.Handle(context.Background(), "A", entity.OpIncrement)
	assert.ErrorIs(t, err, entity.ErrTimeout)
	assert.Nil(t, res)
	assert.Empty(t, events.events)
}

func TestRouter_PublishesMutationsOnly(t *testing.T) {
	events := &recordingPublisher{}
	r := NewRouter(&fakeResolver{id: "X"}, &fakeDispatcher{value: 1}, nil, events)
	ctx := context.Background()

	_, err := r.Handle(ctx, "A", entity.OpIncrement)
	require.NoError(t, err)
	_, err = r.Handle(ctx, "A", entity.OpRead)
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, "X", ev.InstanceID)
	assert.Equal(t, "A", ev.Name)
	assert.Equal(t, entity.OpIncrement, ev.Operation)
	assert.EqualValues(t, 1, ev.Value)
}

func TestRouter_PublishFailureDoesNotFailRequest(t *testing.T) {
	events := &recordingPublisher{err: errors.New("broker down")}
	r := NewRouter(&fakeResolver{id: "X"}, &fakeDispatcher{value: 3}, nil, events)

	res, err := r.Handle(context.Background(), "A", entity.OpIncrement)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Value)
}

// shard count 4, three concurrent increments of a fresh name settle at 3
// and every caller sees a different post-increment value
func TestRouter_ConcurrentIncrementsEndToEnd(t *testing.T) {
	store := createTestStore(t)
	actors := createTestActors(t)
	shardMap := NewShardMapService("shardmap", sharding.NewShardRouter(4), store, actors, cache.NopBucketCache{})
	counters := NewCounterService(store, actors)
	r := NewRouter(shardMap, counters, cache.NewNameCache(time.Minute, 100), nil)
	ctx := context.Background()

	results := make([]*entity.CounterResult, 3)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Handle(ctx, "A", entity.OpIncrement)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	values := make([]int, 0, len(results))
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].InstanceID, res.InstanceID)
		assert.Equal(t, "A", res.Name)
		values = append(values, int(res.Value))
	}
	sort.Ints(values)
	assert.Equal(t, []int{1, 2, 3}, values)

	res, err := r.Handle(ctx, "A", entity.OpRead)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Value)
}

func TestRouter_CollidingNamesShareValue(t *testing.T) {
	store := createTestStore(t)
	actors := createTestActors(t)
	router := sharding.NewShardRouter(4)
	shardMap := NewShardMapService("shardmap", router, store, actors, cache.NopBucketCache{})
	r := NewRouter(shardMap, NewCounterService(store, actors), nil, nil)
	ctx := context.Background()

	first, second := collidingNames(t, router)

	_, err := r.Handle(ctx, first, entity.OpIncrement)
	require.NoError(t, err)
	res, err := r.Handle(ctx, second, entity.OpIncrement)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Value)
	assert.Equal(t, second, res.Name)
}
