// Package store provides the persisted key-value record store the ledger and
// rule book are built on, with SQLite, YAML-file and in-memory adapters.
package store

import (
	"context"
	"fmt"
	"sync"

	apperrors "tradeguard/internal/errors"
)

// Named collections.
const (
	CollectionPositions = "positions"
	CollectionRules     = "rules"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Store is a record store addressed by collection name. Each collection holds
// one structured record, encoded with field names so that records written by
// older versions decode with missing fields left at the caller's defaults.
//
// Writes replace a whole record atomically. Update serializes read-modify-write
// cycles on the same collection; there is no isolation across collections.
type Store interface {
	// Read decodes the record into dst. found is false when no record exists,
	// in which case dst is left untouched.
	Read(ctx context.Context, collection string, dst interface{}) (found bool, err error)

	// Write replaces the record with src.
	Write(ctx context.Context, collection string, src interface{}) error

	// Update reads the record into dst, calls fn, and writes dst back if fn
	// returns nil. No other Update or Write on the collection interleaves.
	Update(ctx context.Context, collection string, dst interface{}, fn func(found bool) error) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection string) error

	// Close releases resources. Later calls fail with ErrStoreClosed.
	Close() error
}

// Open returns a store for the given driver. path is the database file for
// sqlite and the directory for file; memory ignores it.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(path)
	case DriverFile:
		return NewFileStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q: %w", driver, apperrors.ErrConfigInvalid)
	}
}

// recordLocks hands out one RW lock per collection.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func (l *recordLocks) get(collection string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.RWMutex)
	}
	rw, ok := l.locks[collection]
	if !ok {
		rw = &sync.RWMutex{}
		l.locks[collection] = rw
	}
	return rw
}

func (l *recordLocks) lock(collection string) func() {
	rw := l.get(collection)
	rw.Lock()
	return rw.Unlock
}

func (l *recordLocks) rlock(collection string) func() {
	rw := l.get(collection)
	rw.RLock()
	return rw.RUnlock
}

// checkCollection rejects names that could escape a file store directory.
func checkCollection(op, collection string) error {
	if collection == "" {
		return apperrors.NewStoreError(op, collection, fmt.Errorf("empty collection name"))
	}
	for _, r := range collection {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return apperrors.NewStoreError(op, collection, fmt.Errorf("invalid collection name"))
		}
	}
	return nil
}

func corrupt(op, collection string, err error) error {
	return apperrors.NewStoreError(op, collection, fmt.Errorf("%w: %v", apperrors.ErrRecordCorrupt, err))
}
