package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStorage is an in-memory Storage used in tests and as a
// fallback when file storage cannot be created.
type MemoryStorage struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string][]byte),
	}
}

func (ms *MemoryStorage) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	ms.mu.RLock()
	raw, exists := ms.data[key]
	ms.mu.RUnlock()

	if !exists {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, &StorageError{Op: "get", Key: key, Err: err}
	}
	return true, nil
}

func (ms *MemoryStorage) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}

	ms.mu.Lock()
	ms.data[key] = raw
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStorage) Remove(ctx context.Context, key string) error {
	ms.mu.Lock()
	delete(ms.data, key)
	ms.mu.Unlock()
	return nil
}
