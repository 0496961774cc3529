package errors

import "errors"

var (
	// ErrInvalidCapacity is returned when a cache is built with a non-positive capacity.
	ErrInvalidCapacity = errors.New("lru: capacity must be positive")
	// ErrPoisoned is returned by every operation on a cache whose state was left
	// inconsistent by an aborted operation.
	ErrPoisoned = errors.New("lru: cache poisoned")
	// ErrClone wraps failures of the configured value cloner.
	ErrClone = errors.New("lru: clone value")
)
