package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage persists each key as a JSON file under a data directory.
// Writes go through a temp file plus rename so a crash mid-write never
// leaves a torn value behind.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Op: "init", Key: dir, Err: err}
	}
	return &FileStorage{dir: dir}, nil
}

func (fs *FileStorage) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, &StorageError{Op: "get", Key: key, Err: err}
	}
	return true, nil
}

func (fs *FileStorage) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (fs *FileStorage) Remove(ctx context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// path hashes the key so arbitrary strings (URLs included) map to a
// safe filename.
func (fs *FileStorage) path(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return filepath.Join(fs.dir, hex.EncodeToString(h.Sum(nil))+".json")
}
