package store

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	apperrors "tradeguard/internal/errors"
)

// MemoryStore keeps JSON-encoded records in a map. Records are stored
// encoded so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	locks   recordLocks
	closed  atomic.Bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, collection string, dst interface{}) (bool, error) {
	if err := s.check(ctx, "read", collection); err != nil {
		return false, err
	}
	unlock := s.locks.rlock(collection)
	defer unlock()

	return s.read(collection, dst)
}

func (s *MemoryStore) read(collection string, dst interface{}) (bool, error) {
	s.mu.RLock()
	data, ok := s.records[collection]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, corrupt("read", collection, err)
	}
	return true, nil
}

func (s *MemoryStore) Write(ctx context.Context, collection string, src interface{}) error {
	if err := s.check(ctx, "write", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	return s.write(collection, src)
}

func (s *MemoryStore) write(collection string, src interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}
	s.mu.Lock()
	s.records[collection] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, dst interface{}, fn func(found bool) error) error {
	if err := s.check(ctx, "update", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	found, err := s.read(collection, dst)
	if err != nil {
		return err
	}
	if err := fn(found); err != nil {
		return err
	}
	return s.write(collection, dst)
}

func (s *MemoryStore) Delete(ctx context.Context, collection string) error {
	if err := s.check(ctx, "delete", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	s.mu.Lock()
	delete(s.records, collection)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op, collection string) error {
	if s.closed.Load() {
		return apperrors.NewStoreError(op, collection, apperrors.ErrStoreClosed)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreError(op, collection, err)
	}
	return checkCollection(op, collection)
}
