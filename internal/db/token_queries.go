package db

import (
	"context"
	"fmt"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// StoreTokenSnapshot records one reported turn at the current time.
func (db *DB) StoreTokenSnapshot(ctx context.Context, report models.TokenReport) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO token_snapshots (
			session_id, hostname, timestamp, input_tokens, output_tokens,
			cache_creation_input_tokens, cache_read_input_tokens, cwd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.SessionID,
		report.Hostname,
		formatTimestamp(db.now()),
		report.InputTokens,
		report.OutputTokens,
		report.CacheCreationInputTokens,
		report.CacheReadInputTokens,
		nullString(report.Cwd),
	)
	if err != nil {
		return fmt.Errorf("failed to insert token snapshot: %w", err)
	}
	return nil
}

const tokenColumns = `input_tokens, output_tokens, cache_creation_input_tokens, cache_read_input_tokens`

// TokenHistory returns the token series for the range, oldest first.
// Session and project filters read granular rows only because the hourly
// table carries neither dimension.
func (db *DB) TokenHistory(ctx context.Context, r models.HistoryRange, f models.TokenFilter) ([]models.TokenDataPoint, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	from := db.now().Add(-r.Lookback())
	var points []models.TokenDataPoint

	if r.UsesHourly() && !f.GranularOnly() {
		hourly, err := db.tokenHourly(ctx, formatHour(from), f)
		if err != nil {
			return nil, fmt.Errorf("failed to query hourly tokens: %w", err)
		}
		points = append(points, hourly...)
	}

	granular, err := db.tokenGranular(ctx, formatTimestamp(from), f)
	if err != nil {
		return nil, fmt.Errorf("failed to query token snapshots: %w", err)
	}
	points = append(points, granular...)

	return downsampleTokens(points, r.PointCap()), nil
}

func (db *DB) tokenHourly(ctx context.Context, fromHour string, f models.TokenFilter) ([]models.TokenDataPoint, error) {
	if f.Kind == models.FilterHost {
		return db.queryTokenPoints(ctx, `
			SELECT hour, total_input, total_output, total_cache_creation, total_cache_read
			FROM token_hourly
			WHERE hour >= ? AND hostname = ?
			ORDER BY hour ASC
		`, fromHour, f.Value)
	}
	return db.queryTokenPoints(ctx, `
		SELECT hour, SUM(total_input), SUM(total_output),
			SUM(total_cache_creation), SUM(total_cache_read)
		FROM token_hourly
		WHERE hour >= ?
		GROUP BY hour
		ORDER BY hour ASC
	`, fromHour)
}

func (db *DB) tokenGranular(ctx context.Context, from string, f models.TokenFilter) ([]models.TokenDataPoint, error) {
	switch f.Kind {
	case models.FilterSession:
		return db.queryTokenPoints(ctx, `
			SELECT timestamp, `+tokenColumns+` FROM token_snapshots
			WHERE timestamp >= ? AND session_id = ?
			ORDER BY timestamp ASC
		`, from, f.Value)
	case models.FilterProject:
		return db.queryTokenPoints(ctx, `
			SELECT timestamp, `+tokenColumns+` FROM token_snapshots
			WHERE timestamp >= ? AND cwd = ?
			ORDER BY timestamp ASC
		`, from, f.Value)
	case models.FilterHost:
		return db.queryTokenPoints(ctx, `
			SELECT timestamp, `+tokenColumns+` FROM token_snapshots
			WHERE timestamp >= ? AND hostname = ?
			ORDER BY timestamp ASC
		`, from, f.Value)
	default:
		return db.queryTokenPoints(ctx, `
			SELECT timestamp, `+tokenColumns+` FROM token_snapshots
			WHERE timestamp >= ?
			ORDER BY timestamp ASC
		`, from)
	}
}

func (db *DB) queryTokenPoints(ctx context.Context, query string, args ...any) ([]models.TokenDataPoint, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var points []models.TokenDataPoint
	for rows.Next() {
		var ts string
		var input, output, cacheCreation, cacheRead int64
		if err := rows.Scan(&ts, &input, &output, &cacheCreation, &cacheRead); err != nil {
			return nil, fmt.Errorf("failed to scan token point: %w", err)
		}
		t, ok := parseTimestamp(ts)
		if !ok {
			continue
		}
		points = append(points, models.NewTokenDataPoint(t, input, output, cacheCreation, cacheRead))
	}
	return points, rows.Err()
}

// TokenStats sums granular token rows over the last days. Only project and
// host filters apply; any other kind is treated as no filter.
func (db *DB) TokenStats(ctx context.Context, days int, f models.TokenFilter) (models.TokenStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	from := formatTimestamp(windowStart(db.now(), days))
	base := `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cache_creation_input_tokens), 0), COALESCE(SUM(cache_read_input_tokens), 0),
			COUNT(*)
		FROM token_snapshots
		WHERE timestamp >= ?`

	query, args := base, []any{from}
	switch f.Kind {
	case models.FilterProject:
		query, args = base+" AND cwd = ?", []any{from, f.Value}
	case models.FilterHost:
		query, args = base+" AND hostname = ?", []any{from, f.Value}
	}

	var input, output, cacheCreation, cacheRead, turns int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&input, &output, &cacheCreation, &cacheRead, &turns); err != nil {
		return models.TokenStats{}, fmt.Errorf("failed to query token stats: %w", err)
	}
	return models.NewTokenStats(input, output, cacheCreation, cacheRead, turns), nil
}

// TokenHostnames lists every hostname with granular token rows, sorted.
func (db *DB) TokenHostnames(ctx context.Context) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT hostname FROM token_snapshots ORDER BY hostname ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query hostnames: %w", err)
	}
	defer closeRows(rows)

	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan hostname: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}
