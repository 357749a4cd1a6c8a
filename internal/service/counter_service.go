package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"counter-service/internal/actor"
	"counter-service/internal/entity"
	"counter-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const counterValueKey = "value"

// StateStore is the persistent storage actors read and write.
type StateStore interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Update(ctx context.Context, namespace, key string, fn repository.UpdateFunc) (string, error)
	PutIfAbsent(ctx context.Context, namespace, key, value string) (string, bool, error)
	List(ctx context.Context, namespace string) (map[string]string, error)
}

func counterNamespace(id string) string {
	return "counter:" + id
}

// CounterService is the Counter Actor: each instance id owns one int64 value
// and every operation on it runs inside that id's mailbox.
type CounterService struct {
	store  StateStore
	actors *actor.System
}

// NewCounterService creates a new instance of CounterService
func NewCounterService(store StateStore, actors *actor.System) *CounterService {
	return &CounterService{
		store:  store,
		actors: actors,
	}
}

// Increment adds one and returns the committed value.
func (s *CounterService) Increment(ctx context.Context, id string) (int64, error) {
	return s.Apply(ctx, id, entity.OpIncrement)
}

// Decrement subtracts one and returns the committed value.
func (s *CounterService) Decrement(ctx context.Context, id string) (int64, error) {
	return s.Apply(ctx, id, entity.OpDecrement)
}

// Peek returns the current value without writing.
func (s *CounterService) Peek(ctx context.Context, id string) (int64, error) {
	return s.Apply(ctx, id, entity.OpRead)
}

// Apply runs op against the counter instance id. Unknown operations are
// rejected before reaching the actor.
func (s *CounterService) Apply(ctx context.Context, id string, op entity.Operation) (int64, error) {
	if !op.Valid() {
		operationsMetric.WithLabelValues("unknown", "not_found").Inc()
		return 0, fmt.Errorf("%w: unknown operation %q", entity.ErrNotFound, op)
	}
	if id == "" {
		return 0, fmt.Errorf("%w: empty counter instance id", entity.ErrBadRequest)
	}

	var value int64
	err := s.actors.Call(ctx, counterNamespace(id), func(ctx context.Context) error {
		var err error
		value, err = s.apply(ctx, id, op)
		return err
	})
	operationsMetric.WithLabelValues(string(op), resultLabel(err)).Inc()
	if err != nil {
		logger.Error().Err(err).Msgf("Error applying %s to counter %s", op, id)
		return 0, err
	}

	return value, nil
}

// apply runs inside the actor's mailbox.
func (s *CounterService) apply(ctx context.Context, id string, op entity.Operation) (int64, error) {
	ns := counterNamespace(id)

	if !op.Mutates() {
		raw, err := s.store.Get(ctx, ns, counterValueKey)
		if errors.Is(err, repository.ErrKeyNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return parseCounterValue(raw)
	}

	raw, err := s.store.Update(ctx, ns, counterValueKey, func(current string, found bool) (string, error) {
		var value int64
		if found {
			v, err := parseCounterValue(current)
			if err != nil {
				return "", err
			}
			value = v
		}

		next, err := step(value, op)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(next, 10), nil
	})
	if err != nil {
		return 0, err
	}

	return parseCounterValue(raw)
}

// step applies a unit delta. Leaving the int64 range fails instead of wrapping.
func step(value int64, op entity.Operation) (int64, error) {
	switch op {
	case entity.OpIncrement:
		if value == math.MaxInt64 {
			return value, fmt.Errorf("%w: increment at %d", entity.ErrOverflow, value)
		}
		return value + 1, nil
	case entity.OpDecrement:
		if value == math.MinInt64 {
			return value, fmt.Errorf("%w: decrement at %d", entity.ErrOverflow, value)
		}
		return value - 1, nil
	}
	return value, nil
}

func parseCounterValue(raw string) (int64, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt counter value %q: %w", entity.ErrStorageFailure, raw, err)
	}
	return value, nil
}
