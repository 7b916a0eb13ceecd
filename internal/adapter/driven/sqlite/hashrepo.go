package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HashStore = (*HashRepo)(nil)

// HashRepo is the SQLite implementation of the HashStore port.
type HashRepo struct {
	db *DB
}

// NewHashRepo creates a new HashRepo.
func NewHashRepo(db *DB) *HashRepo {
	return &HashRepo{db: db}
}

// HGet returns the value under (group, id), or driven.ErrNotFound.
func (r *HashRepo) HGet(ctx context.Context, group, id string) (string, error) {
	const query = `SELECT value FROM hash_entries WHERE grp = ? AND id = ?`
	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, group, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", driven.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s entry: %w", group, err)
	}
	return value, nil
}

// HSet stores or replaces the value under (group, id).
func (r *HashRepo) HSet(ctx context.Context, group, id, value string) error {
	const query = `INSERT OR REPLACE INTO hash_entries (grp, id, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, group, id, value); err != nil {
		return fmt.Errorf("set %s entry: %w", group, err)
	}
	return nil
}

// HKeys lists the ids in group, ordered by id.
func (r *HashRepo) HKeys(ctx context.Context, group string) ([]string, error) {
	const query = `SELECT id FROM hash_entries WHERE grp = ? ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", group, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", group, err)
		}
		keys = append(keys, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", group, err)
	}
	return keys, nil
}
