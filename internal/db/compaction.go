package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CompactionResult reports what one compaction pass did.
type CompactionResult struct {
	UsageHourly  int64 `json:"usage_hourly"`
	UsageDeleted int64 `json:"usage_deleted"`
	TokenHourly  int64 `json:"token_hourly"`
	TokenDeleted int64 `json:"token_deleted"`
}

const compactUsageQuery = `
	INSERT OR REPLACE INTO usage_hourly
		(hour, bucket_label, avg_utilization, max_utilization, min_utilization, sample_count)
	SELECT ` + sqlHourExpr + ` AS hour, bucket_label,
		AVG(utilization), MAX(utilization), MIN(utilization), COUNT(*)
	FROM usage_snapshots
	WHERE timestamp < ?
	GROUP BY hour, bucket_label
`

const compactTokenQuery = `
	INSERT OR REPLACE INTO token_hourly
		(hour, hostname, total_input, total_output, total_cache_creation, total_cache_read, turn_count)
	SELECT ` + sqlHourExpr + ` AS hour, hostname,
		SUM(input_tokens), SUM(output_tokens),
		SUM(cache_creation_input_tokens), SUM(cache_read_input_tokens), COUNT(*)
	FROM token_snapshots
	WHERE timestamp < ?
	GROUP BY hour, hostname
`

// CompactAndRetire folds granular rows older than cutoff into the hourly
// tables and then deletes them. Each table is handled in its own
// transaction with the upsert ahead of the delete. Running it twice with the
// same cutoff leaves the hourly tables unchanged.
//
// The cutoff is rounded down to the hour so an hour is always compacted in
// one pass; the upsert replaces the whole hour row.
func (db *DB) CompactAndRetire(ctx context.Context, cutoff time.Time) (CompactionResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var res CompactionResult
	ts := formatTimestamp(cutoff.UTC().Truncate(time.Hour))

	var err error
	res.UsageHourly, res.UsageDeleted, err = db.compactTable(ctx, compactUsageQuery,
		"DELETE FROM usage_snapshots WHERE timestamp < ?", ts)
	if err != nil {
		return res, fmt.Errorf("failed to compact usage snapshots: %w", err)
	}

	res.TokenHourly, res.TokenDeleted, err = db.compactTable(ctx, compactTokenQuery,
		"DELETE FROM token_snapshots WHERE timestamp < ?", ts)
	if err != nil {
		return res, fmt.Errorf("failed to compact token snapshots: %w", err)
	}

	return res, nil
}

func (db *DB) compactTable(ctx context.Context, upsert, del, cutoff string) (aggregated, deleted int64, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var result sql.Result
	result, err = tx.ExecContext(ctx, upsert, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate: %w", err)
	}
	aggregated, _ = result.RowsAffected()

	result, err = tx.ExecContext(ctx, del, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete: %w", err)
	}
	deleted, _ = result.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return aggregated, deleted, nil
}
