package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// StoreUsageSnapshot inserts one row per valid bucket, all sharing the same
// timestamp, in a single transaction. Buckets with a non-finite or negative
// utilization are skipped.
func (db *DB) StoreUsageSnapshot(ctx context.Context, buckets []models.UsageBucket) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := formatTimestamp(db.now())

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_snapshots (timestamp, bucket_label, utilization, resets_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, b := range buckets {
		if !b.Valid() {
			continue
		}
		var resetsAt sql.NullString
		if b.ResetsAt != nil {
			resetsAt = sql.NullString{String: b.ResetsAt.UTC().Format(time.RFC3339), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, now, b.Label, b.Utilization, resetsAt); err != nil {
			return fmt.Errorf("failed to insert snapshot for %q: %w", b.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// UsageHistory returns the utilization series of one bucket over the range,
// oldest first. Long ranges prepend hourly aggregates to the granular rows.
func (db *DB) UsageHistory(ctx context.Context, bucket string, r models.HistoryRange) ([]models.DataPoint, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	from := db.now().Add(-r.Lookback())
	var points []models.DataPoint

	if r.UsesHourly() {
		hourly, err := db.queryDataPoints(ctx, `
			SELECT hour, avg_utilization FROM usage_hourly
			WHERE bucket_label = ? AND hour >= ?
			ORDER BY hour ASC
		`, bucket, formatHour(from))
		if err != nil {
			return nil, fmt.Errorf("failed to query hourly usage: %w", err)
		}
		points = append(points, hourly...)
	}

	granular, err := db.queryDataPoints(ctx, `
		SELECT timestamp, utilization FROM usage_snapshots
		WHERE bucket_label = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`, bucket, formatTimestamp(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage snapshots: %w", err)
	}
	points = append(points, granular...)

	return downsampleUsage(points, r.PointCap()), nil
}

func (db *DB) queryDataPoints(ctx context.Context, query string, args ...any) ([]models.DataPoint, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var points []models.DataPoint
	for rows.Next() {
		var ts string
		var p models.DataPoint
		if err := rows.Scan(&ts, &p.Utilization); err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		t, ok := parseTimestamp(ts)
		if !ok {
			continue
		}
		p.Timestamp = t
		points = append(points, p)
	}
	return points, rows.Err()
}

// UsageStats summarizes one bucket over the last days. Current is left zero;
// callers holding a live reading fill it in.
func (db *DB) UsageStats(ctx context.Context, bucket string, days int) (models.BucketStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.bucketStats(ctx, bucket, days)
}

// AllBucketStats summarizes every bucket in current, taking Current from the
// live reading. The result follows the order of current.
func (db *DB) AllBucketStats(ctx context.Context, current []models.UsageBucket, days int) ([]models.BucketStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stats := make([]models.BucketStats, 0, len(current))
	for _, b := range current {
		s, err := db.bucketStats(ctx, b.Label, days)
		if err != nil {
			return nil, err
		}
		s.Current = b.Utilization
		stats = append(stats, s)
	}
	return stats, nil
}

func (db *DB) bucketStats(ctx context.Context, bucket string, days int) (models.BucketStats, error) {
	now := db.now()
	stats := models.BucketStats{Label: bucket}

	var avg, maxU, minU sql.NullFloat64
	var count, above sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `
		SELECT AVG(utilization), MAX(utilization), MIN(utilization), COUNT(*),
			SUM(CASE WHEN utilization >= ? THEN 1 ELSE 0 END)
		FROM usage_snapshots
		WHERE bucket_label = ? AND timestamp >= ?
	`, aboveThreshold, bucket, formatTimestamp(windowStart(now, days))).Scan(&avg, &maxU, &minU, &count, &above)
	if err != nil {
		return stats, fmt.Errorf("failed to query usage stats for %q: %w", bucket, err)
	}

	stats.Avg = avg.Float64
	stats.Max = maxU.Float64
	stats.Min = minU.Float64
	stats.SampleCount = count.Int64
	if count.Int64 > 0 {
		stats.TimeAbove80 = float64(above.Int64) / float64(count.Int64) * 100
	}

	stats.Trend, err = db.trend(ctx, bucket, now)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// trend compares mean utilization over the last hour with the hour before.
func (db *DB) trend(ctx context.Context, bucket string, now time.Time) (models.Trend, error) {
	var recent, previous sql.NullFloat64

	err := db.conn.QueryRowContext(ctx, `
		SELECT AVG(utilization) FROM usage_snapshots
		WHERE bucket_label = ? AND timestamp >= ?
	`, bucket, formatTimestamp(now.Add(-time.Hour))).Scan(&recent)
	if err != nil {
		return models.TrendUnknown, fmt.Errorf("failed to query recent trend window: %w", err)
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT AVG(utilization) FROM usage_snapshots
		WHERE bucket_label = ? AND timestamp >= ? AND timestamp < ?
	`, bucket, formatTimestamp(now.Add(-2*time.Hour)), formatTimestamp(now.Add(-time.Hour))).Scan(&previous)
	if err != nil {
		return models.TrendUnknown, fmt.Errorf("failed to query previous trend window: %w", err)
	}

	return models.TrendFrom(nullFloatPtr(recent), nullFloatPtr(previous)), nil
}

// SnapshotCount returns the number of granular usage rows.
func (db *DB) SnapshotCount(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
