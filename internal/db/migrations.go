package db

import (
	"context"
	"fmt"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

// migrate brings older databases up to the current schema. Databases created
// before project tracking have no cwd column on token_snapshots.
func (db *DB) migrate() error {
	ctx := context.Background()

	rows, err := db.conn.QueryContext(ctx, "SELECT cwd FROM token_snapshots LIMIT 0")
	if err == nil {
		closeRows(rows)
		return nil
	}

	logger.Info("adding cwd column to token_snapshots")
	if _, err := db.conn.ExecContext(ctx,
		"ALTER TABLE token_snapshots ADD COLUMN cwd TEXT DEFAULT NULL"); err != nil {
		return fmt.Errorf("failed to add cwd column: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_token_snap_cwd ON token_snapshots(cwd)"); err != nil {
		return fmt.Errorf("failed to index cwd column: %w", err)
	}
	return nil
}
