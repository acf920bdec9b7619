package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	apperrors "tradeguard/internal/errors"
)

// FileStore implements Store with one YAML document per collection inside a
// directory. Writes go to a temp file that is synced and renamed over the
// target, so a reader never sees a half-written record.
type FileStore struct {
	dir    string
	locks  recordLocks
	closed atomic.Bool
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store needs a directory: %w", apperrors.ErrConfigInvalid)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".yaml")
}

// Read decodes the collection's YAML document into dst.
func (s *FileStore) Read(ctx context.Context, collection string, dst interface{}) (bool, error) {
	if err := s.check(ctx, "read", collection); err != nil {
		return false, err
	}
	unlock := s.locks.rlock(collection)
	defer unlock()

	return s.read(collection, dst)
}

func (s *FileStore) read(collection string, dst interface{}) (bool, error) {
	data, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStoreError("read", collection, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return false, corrupt("read", collection, err)
	}
	return true, nil
}

// Write replaces the collection's document.
func (s *FileStore) Write(ctx context.Context, collection string, src interface{}) error {
	if err := s.check(ctx, "write", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	return s.write(collection, src)
}

func (s *FileStore) write(collection string, src interface{}) error {
	data, err := yaml.Marshal(src)
	if err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStoreError("write", collection, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewStoreError("write", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}
	return nil
}

// Update runs a read-modify-write cycle under the collection's lock.
func (s *FileStore) Update(ctx context.Context, collection string, dst interface{}, fn func(found bool) error) error {
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

// Delete removes the collection's document.
func (s *FileStore) Delete(ctx context.Context, collection string) error {
	if err := s.check(ctx, "delete", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	if err := os.Remove(s.path(collection)); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStoreError("delete", collection, err)
	}
	return nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *FileStore) check(ctx context.Context, op, collection string) error {
	if s.closed.Load() {
		return apperrors.NewStoreError(op, collection, apperrors.ErrStoreClosed)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreError(op, collection, err)
	}
	return checkCollection(op, collection)
}
