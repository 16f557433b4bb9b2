// Package db manages the embedded time-series store: raw usage and token
// snapshots, their hourly aggregates, and a small settings table.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

// DefaultRetention is how long granular rows are kept before compaction.
const DefaultRetention = 30 * 24 * time.Hour

// DB owns the single SQLite connection. Every exported method holds mu for
// its whole duration, so operations never interleave.
type DB struct {
	conn      *sql.DB
	now       func() time.Time
	path      string
	retention time.Duration
	mu        sync.Mutex

	skipStartupCompaction bool
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the time source used for "now" in inserts and windows.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// WithRetention overrides the granular retention window used at startup.
func WithRetention(d time.Duration) Option {
	return func(db *DB) {
		if d > 0 {
			db.retention = d
		}
	}
}

// WithoutStartupCompaction leaves old rows in place on open, for callers
// that compact explicitly and want the counts.
func WithoutStartupCompaction() Option {
	return func(db *DB) { db.skipStartupCompaction = true }
}

// New opens the database, creates the schema, applies migrations and runs
// one compaction pass before returning.
func New(path string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("failed to restrict database permissions", "path", path, "error", err)
	}

	db := &DB{
		conn:      sqlDB,
		path:      path,
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := db.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if db.skipStartupCompaction {
		return db, nil
	}

	res, err := db.CompactAndRetire(context.Background(), db.now().Add(-db.retention))
	if err != nil {
		logger.Warn("cleanup on startup failed", "error", err)
	} else if res.UsageDeleted > 0 || res.TokenDeleted > 0 {
		logger.Info("compacted old snapshots",
			"usage_deleted", res.UsageDeleted, "token_deleted", res.TokenDeleted)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets up database pragmas.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.conn.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createUsageTables(); err != nil {
		return err
	}
	if err := db.createTokenTables(); err != nil {
		return err
	}
	return db.createSettingsTable()
}

func (db *DB) createUsageTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS usage_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		bucket_label TEXT NOT NULL,
		utilization REAL NOT NULL,
		resets_at TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON usage_snapshots(timestamp);
	CREATE INDEX IF NOT EXISTS idx_snapshots_bucket ON usage_snapshots(bucket_label);
	CREATE INDEX IF NOT EXISTS idx_snapshots_ts_bucket ON usage_snapshots(timestamp, bucket_label);

	CREATE TABLE IF NOT EXISTS usage_hourly (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour TEXT NOT NULL,
		bucket_label TEXT NOT NULL,
		avg_utilization REAL NOT NULL,
		max_utilization REAL NOT NULL,
		min_utilization REAL NOT NULL,
		sample_count INTEGER NOT NULL,
		UNIQUE(hour, bucket_label)
	);
	CREATE INDEX IF NOT EXISTS idx_hourly_hour ON usage_hourly(hour);
	CREATE INDEX IF NOT EXISTS idx_hourly_bucket ON usage_hourly(bucket_label);
	`
	_, err := db.conn.ExecContext(context.Background(), query)
	return err
}

// createTokenTables creates token_snapshots without cwd; the column is added
// by migrate so old and new databases converge on the same shape.
func (db *DB) createTokenTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS token_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		hostname TEXT NOT NULL DEFAULT 'local',
		timestamp TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cache_creation_input_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_input_tokens INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_token_snap_ts ON token_snapshots(timestamp);
	CREATE INDEX IF NOT EXISTS idx_token_snap_host ON token_snapshots(hostname);
	CREATE INDEX IF NOT EXISTS idx_token_snap_session ON token_snapshots(session_id);

	CREATE TABLE IF NOT EXISTS token_hourly (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour TEXT NOT NULL,
		hostname TEXT NOT NULL DEFAULT 'local',
		total_input INTEGER NOT NULL,
		total_output INTEGER NOT NULL,
		total_cache_creation INTEGER NOT NULL DEFAULT 0,
		total_cache_read INTEGER NOT NULL DEFAULT 0,
		turn_count INTEGER NOT NULL,
		UNIQUE(hour, hostname)
	);
	CREATE INDEX IF NOT EXISTS idx_token_hourly_hour ON token_hourly(hour);
	`
	_, err := db.conn.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createSettingsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.ExecContext(context.Background(), query)
	return err
}

// TableCounts holds the row count of every data table.
type TableCounts struct {
	UsageSnapshots int64
	UsageHourly    int64
	TokenSnapshots int64
	TokenHourly    int64
}

// Counts returns the current row count of every data table.
func (db *DB) Counts(ctx context.Context) (TableCounts, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var c TableCounts
	targets := []struct {
		table string
		dst   *int64
	}{
		{"usage_snapshots", &c.UsageSnapshots},
		{"usage_hourly", &c.UsageHourly},
		{"token_snapshots", &c.TokenSnapshots},
		{"token_hourly", &c.TokenHourly},
	}
	for _, t := range targets {
		// Table names come from the fixed list above.
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return TableCounts{}, fmt.Errorf("failed to count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Checkpoint WAL before closing
	_, _ = db.conn.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, "VACUUM")
	return err
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Error("failed to close rows", "error", err)
	}
}
