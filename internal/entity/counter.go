package entity

import (
	"fmt"
	"time"
)

// Operation selects what a Counter Actor does with its value.
type Operation string

const (
	OpIncrement Operation = "increment"
	OpDecrement Operation = "decrement"
	OpRead      Operation = "read"
)

// ParseOperation maps an inbound selector to an Operation.
// The empty selector is the root path and means read.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpIncrement, OpDecrement, OpRead:
		return Operation(s), nil
	case "":
		return OpRead, nil
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrNotFound, s)
}

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpIncrement, OpDecrement, OpRead:
		return true
	}
	return false
}

// Mutates reports whether op writes the counter value.
func (op Operation) Mutates() bool {
	return op == OpIncrement || op == OpDecrement
}

// CounterResult is what the front router hands back to a client.
type CounterResult struct {
	InstanceID string `json:"id"`
	Name       string `json:"name"`
	Value      int64  `json:"count"`
}

func (r CounterResult) String() string {
	return fmt.Sprintf("Counter '%s', name: '%s', count: %d", r.InstanceID, r.Name, r.Value)
}

// CounterEvent is published after a committed increment or decrement.
type CounterEvent struct {
	InstanceID string    `json:"id"`
	Name       string    `json:"name"`
	Operation  Operation `json:"operation"`
	Value      int64     `json:"count"`
	At         time.Time `json:"at"`
}

// ShardMapEntry is one persisted bucket -> counter instance assignment.
type ShardMapEntry struct {
	Bucket     int    `json:"bucket"`
	InstanceID string `json:"id"`
}

/*
Actor storage table (one per storage shard):

CREATE TABLE actor_storage (
	namespace VARCHAR(191) NOT NULL,
	storage_key VARCHAR(191) NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (namespace, storage_key)
);

Counter actors use namespace "counter:<id>" with the single key "value".
The shard map uses namespace "shardmap:<name>" with keys "0".."SHARD_COUNT-1".
*/
