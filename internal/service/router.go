package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"counter-service/internal/cache"
	"counter-service/internal/entity"
)

// Resolver maps a logical name to a counter instance id.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Dispatcher applies an operation to a counter instance.
type Dispatcher interface {
	Apply(ctx context.Context, id string, op entity.Operation) (int64, error)
}

// Router is the Front Router. It holds no state of its own beyond an
// optional process-local name cache, which is never relied on for
// correctness (see cache.NameCache).
type Router struct {
	resolver Resolver
	counters Dispatcher
	names    *cache.NameCache
	events   EventPublisher
}

// NewRouter creates a Router. names may be nil to always consult the shard map.
func NewRouter(resolver Resolver, counters Dispatcher, names *cache.NameCache, events EventPublisher) *Router {
	if events == nil {
		events = NopPublisher{}
	}
	return &Router{
		resolver: resolver,
		counters: counters,
		names:    names,
		events:   events,
	}
}

// Handle resolves name and applies op to its counter.
func (r *Router) Handle(ctx context.Context, name string, op entity.Operation) (*entity.CounterResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing counter name", entity.ErrBadRequest)
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: unknown operation %q", entity.ErrNotFound, op)
	}

	id, err := r.resolve(ctx, name)
	if err != nil {
		if !errors.Is(err, entity.ErrResolutionFailed) && !errors.Is(err, entity.ErrBadRequest) {
			err = fmt.Errorf("%w: %w", entity.ErrResolutionFailed, err)
		}
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: no counter instance for name %q", entity.ErrResolutionFailed, name)
	}

	value, err := r.counters.Apply(ctx, id, op)
	if err != nil {
		return nil, err
	}

	if op.Mutates() {
		r.publish(ctx, entity.CounterEvent{
			InstanceID: id,
			Name:       name,
			Operation:  op,
			Value:      value,
			At:         time.Now().UTC(),
		})
	}

	return &entity.CounterResult{InstanceID: id, Name: name, Value: value}, nil
}

func (r *Router) resolve(ctx context.Context, name string) (string, error) {
	if r.names == nil {
		return r.resolver.Resolve(ctx, name)
	}

	id, hit, err := r.names.Load(ctx, name, func(ctx context.Context) (string, error) {
		return r.resolver.Resolve(ctx, name)
	})
	if hit {
		routerCacheMetric.WithLabelValues("hit").Inc()
	} else {
		routerCacheMetric.WithLabelValues("miss").Inc()
	}
	return id, err
}

// publish never fails the request: the value is already committed.
func (r *Router) publish(ctx context.Context, event entity.CounterEvent) {
	if err := r.events.Publish(ctx, event); err != nil {
		publishErrorsMetric.Inc()
		logger.Error().Err(err).Msgf("Error publishing %s event for counter %s", event.Operation, event.InstanceID)
	}
}
