package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

const totalTokensExpr = `SUM(input_tokens + output_tokens + cache_creation_input_tokens + cache_read_input_tokens)`

// HostBreakdown groups token usage by hostname, largest first.
func (db *DB) HostBreakdown(ctx context.Context, days int) ([]models.HostBreakdown, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT hostname, `+totalTokensExpr+` AS total_tokens, COUNT(*), MAX(timestamp)
		FROM token_snapshots
		WHERE timestamp >= ?
		GROUP BY hostname
		ORDER BY total_tokens DESC
		LIMIT ?
	`, formatTimestamp(windowStart(db.now(), days)), hostBreakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query host breakdown: %w", err)
	}
	defer closeRows(rows)

	var out []models.HostBreakdown
	for rows.Next() {
		var h models.HostBreakdown
		var last string
		if err := rows.Scan(&h.Hostname, &h.TotalTokens, &h.TurnCount, &last); err != nil {
			return nil, fmt.Errorf("failed to scan host breakdown: %w", err)
		}
		h.LastActive, _ = parseTimestamp(last)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ProjectBreakdown groups token usage by (cwd, hostname), largest first.
// Rows without a working directory are excluded.
func (db *DB) ProjectBreakdown(ctx context.Context, days int) ([]models.ProjectBreakdown, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT cwd, hostname, `+totalTokensExpr+` AS total_tokens, COUNT(*),
			COUNT(DISTINCT session_id), MAX(timestamp)
		FROM token_snapshots
		WHERE timestamp >= ? AND cwd IS NOT NULL
		GROUP BY cwd, hostname
		ORDER BY total_tokens DESC
		LIMIT ?
	`, formatTimestamp(windowStart(db.now(), days)), projectBreakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query project breakdown: %w", err)
	}
	defer closeRows(rows)

	var out []models.ProjectBreakdown
	for rows.Next() {
		var p models.ProjectBreakdown
		var last string
		if err := rows.Scan(&p.Project, &p.Hostname, &p.TotalTokens, &p.TurnCount,
			&p.SessionCount, &last); err != nil {
			return nil, fmt.Errorf("failed to scan project breakdown: %w", err)
		}
		p.LastActive, _ = parseTimestamp(last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SessionBreakdown groups token usage by session, largest first, with ties
// broken by most recent activity. An empty hostname means all hosts. Each
// session's project is its most recent non-null cwd.
func (db *DB) SessionBreakdown(ctx context.Context, days int, hostname string) ([]models.SessionBreakdown, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	from := formatTimestamp(windowStart(db.now(), days))
	const selectPart = `
		SELECT s.session_id, MAX(s.hostname),
			SUM(s.input_tokens + s.output_tokens + s.cache_creation_input_tokens + s.cache_read_input_tokens) AS total_tokens,
			COUNT(*), MIN(s.timestamp), MAX(s.timestamp) AS last_active,
			(SELECT c.cwd FROM token_snapshots c
				WHERE c.session_id = s.session_id AND c.cwd IS NOT NULL
				ORDER BY c.timestamp DESC LIMIT 1)
		FROM token_snapshots s
		WHERE s.timestamp >= ?`
	const tail = `
		GROUP BY s.session_id
		ORDER BY total_tokens DESC, last_active DESC
		LIMIT ?`

	var rows *sql.Rows
	var err error
	if hostname != "" {
		rows, err = db.conn.QueryContext(ctx, selectPart+" AND s.hostname = ?"+tail,
			from, hostname, sessionBreakdownLimit)
	} else {
		rows, err = db.conn.QueryContext(ctx, selectPart+tail, from, sessionBreakdownLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session breakdown: %w", err)
	}
	defer closeRows(rows)

	var out []models.SessionBreakdown
	for rows.Next() {
		var s models.SessionBreakdown
		var first, last string
		var project sql.NullString
		if err := rows.Scan(&s.SessionID, &s.Hostname, &s.TotalTokens, &s.TurnCount,
			&first, &last, &project); err != nil {
			return nil, fmt.Errorf("failed to scan session breakdown: %w", err)
		}
		s.FirstSeen, _ = parseTimestamp(first)
		s.LastActive, _ = parseTimestamp(last)
		s.Project = stringPtr(project)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteHostData removes every granular and hourly token row for hostname
// and returns the combined number of rows removed.
func (db *DB) DeleteHostData(ctx context.Context, hostname string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, query := range []string{
		"DELETE FROM token_snapshots WHERE hostname = ?",
		"DELETE FROM token_hourly WHERE hostname = ?",
	} {
		res, err := tx.ExecContext(ctx, query, hostname)
		if err != nil {
			return 0, fmt.Errorf("failed to delete host data: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit host delete: %w", err)
	}
	return total, nil
}

// DeleteSessionData removes the granular rows of one session.
func (db *DB) DeleteSessionData(ctx context.Context, sessionID string) (int64, error) {
	return db.deleteTokens(ctx, "DELETE FROM token_snapshots WHERE session_id = ?", sessionID)
}

// DeleteProjectData removes the granular rows of one working directory.
func (db *DB) DeleteProjectData(ctx context.Context, cwd string) (int64, error) {
	return db.deleteTokens(ctx, "DELETE FROM token_snapshots WHERE cwd = ?", cwd)
}

func (db *DB) deleteTokens(ctx context.Context, query, arg string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("failed to delete token data: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
