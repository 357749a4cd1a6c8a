package entity

import "errors"

var (
	// ErrBadRequest means the input was missing or invalid. Nothing was touched.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound means the operation selector is not recognized. Nothing was touched.
	ErrNotFound = errors.New("not found")
	// ErrResolutionFailed means the shard map could not produce or persist an instance id.
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrTimeout means an actor did not answer within its call deadline.
	ErrTimeout = errors.New("timeout")
	// ErrStorageFailure means the persistence layer rejected a read or write.
	ErrStorageFailure = errors.New("storage failure")
	// ErrOverflow means the counter would leave the int64 range. Nothing was written.
	ErrOverflow = errors.New("counter overflow")
)
