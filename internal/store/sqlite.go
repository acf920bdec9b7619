// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "tradeguard/internal/errors"
	"tradeguard/pkg/utils"
)

// SQLiteStore implements Store using SQLite. Each collection is one row of
// the records table holding a JSON body.
type SQLiteStore struct {
	db     *sql.DB
	locks  recordLocks
	closed atomic.Bool
	retry  utils.RetryConfig
}

// NewSQLiteStore creates a new SQLite-based record store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// _txlock=immediate takes the write lock at BEGIN so read-modify-write
	// cycles from other processes queue instead of failing at COMMIT.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.ShouldRetry = isBusy

	store := &SQLiteStore{
		db:    db,
		retry: retry,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Read decodes the collection's record into dst.
func (s *SQLiteStore) Read(ctx context.Context, collection string, dst interface{}) (bool, error) {
	if err := s.check("read", collection); err != nil {
		return false, err
	}
	unlock := s.locks.rlock(collection)
	defer unlock()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE collection = ?`, collection).Scan(&body)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, s.dbError("read", collection, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return false, corrupt("read", collection, err)
	}
	return true, nil
}

// Write replaces the collection's record.
func (s *SQLiteStore) Write(ctx context.Context, collection string, src interface{}) error {
	if err := s.check("write", collection); err != nil {
		return err
	}
	body, err := json.Marshal(src)
	if err != nil {
		return apperrors.NewStoreError("write", collection, err)
	}

	unlock := s.locks.lock(collection)
	defer unlock()

	err = utils.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, upsertRecord, collection, string(body), time.Now().UTC())
		return err
	})
	if err != nil {
		return s.dbError("write", collection, err)
	}
	return nil
}

const upsertRecord = `
	INSERT INTO records (collection, body, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(collection) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
`

// Update runs a read-modify-write cycle inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, collection string, dst interface{}, fn func(found bool) error) error {
	if err := s.check("update", collection); err != nil {
		return err
	}

	unlock := s.locks.lock(collection)
	defer unlock()

	tx, err := utils.RetryWithResult(ctx, s.retry, func() (*sql.Tx, error) {
		return s.db.BeginTx(ctx, nil)
	})
	if err != nil {
		return s.dbError("update", collection, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	var body string
	found := true
	err = tx.QueryRowContext(ctx, `SELECT body FROM records WHERE collection = ?`, collection).Scan(&body)
	switch {
	case err == sql.ErrNoRows:
		found = false
	case err != nil:
		return s.dbError("update", collection, err)
	default:
		if err := json.Unmarshal([]byte(body), dst); err != nil {
			return corrupt("update", collection, err)
		}
	}

	if err := fn(found); err != nil {
		return err
	}

	out, err := json.Marshal(dst)
	if err != nil {
		return apperrors.NewStoreError("update", collection, err)
	}
	if _, err := tx.ExecContext(ctx, upsertRecord, collection, string(out), time.Now().UTC()); err != nil {
		return s.dbError("update", collection, err)
	}
	if err := tx.Commit(); err != nil {
		return s.dbError("update", collection, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Delete removes the collection's record.
func (s *SQLiteStore) Delete(ctx context.Context, collection string) error {
	if err := s.check("delete", collection); err != nil {
		return err
	}
	unlock := s.locks.lock(collection)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return s.dbError("delete", collection, err)
	}
	return nil
}

func (s *SQLiteStore) check(op, collection string) error {
	if s.closed.Load() {
		return apperrors.NewStoreError(op, collection, apperrors.ErrStoreClosed)
	}
	return checkCollection(op, collection)
}

func (s *SQLiteStore) dbError(op, collection string, err error) error {
	return apperrors.NewStoreError(op, collection, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if apperrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
