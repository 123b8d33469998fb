package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/goodtune/pillbox/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface on a SQLite file.
// Every namespace shares the prefs table, keyed by (namespace, key).
type Store struct {
	db *sql.DB
}

// Open creates a new database connection and runs migrations
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := storage.EnsureDir(dir); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite limitation
	db.SetMaxIdleConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&bucket{ctx: ctx, tx: tx, namespace: namespace, readOnly: true})
}

// Update runs fn inside a transaction committed only when fn succeeds.
func (s *Store) Update(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}

	if err := fn(&bucket{ctx: ctx, tx: tx, namespace: namespace}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit namespace %s: %w", namespace, err)
	}
	return nil
}

type bucket struct {
	ctx       context.Context
	tx        *sql.Tx
	namespace string
	readOnly  bool
}

func (b *bucket) Get(key string) ([]byte, error) {
	var value []byte
	err := b.tx.QueryRowContext(b.ctx,
		"SELECT value FROM prefs WHERE namespace = ? AND key = ?",
		b.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", b.namespace, key, err)
	}
	return value, nil
}

func (b *bucket) Put(key string, value []byte) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO prefs (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, b.namespace, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", b.namespace, key, err)
	}
	return nil
}

func (b *bucket) Delete(key string) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	res, err := b.tx.ExecContext(b.ctx,
		"DELETE FROM prefs WHERE namespace = ? AND key = ?",
		b.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.namespace, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
