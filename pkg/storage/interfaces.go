package storage

import (
	"context"
	"fmt"
)

// Storage is the persistent key-value collaborator. Implementations
// must be safe for concurrent use and crash-durable where they claim
// to be. Values are (de)serialized as JSON.
type Storage interface {
	// Get unmarshals the value for key into dest. The bool reports
	// whether the key existed; callers apply their own defaults.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Remove(ctx context.Context, key string) error
}

// StorageError wraps a persistence failure with its operation and key.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
