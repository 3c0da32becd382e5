package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MetaStore = (*MetaRepo)(nil)

// MetaRepo stores vault-level key/value pairs in the vault_meta table.
type MetaRepo struct {
	db *DB
}

// NewMetaRepo creates a new MetaRepo backed by the given DB.
func NewMetaRepo(db *DB) *MetaRepo {
	return &MetaRepo{db: db}
}

// Get returns the value stored under key.
func (r *MetaRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM vault_meta WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

// PutIfAbsent stores value under key unless the key already exists.
func (r *MetaRepo) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	const query = `INSERT INTO vault_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`

	result, err := r.db.Writer.ExecContext(ctx, query, key, value)
	if err != nil {
		return false, fmt.Errorf("put meta %q: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rows == 1, nil
}
