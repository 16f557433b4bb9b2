package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Setting returns the value stored under key. The boolean is false when the
// key has never been set.
func (db *DB) Setting(ctx context.Context, key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}
