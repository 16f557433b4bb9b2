package db

import (
	"database/sql"
	"time"
)

// Timestamps are stored as UTC text with a fixed nine-digit fraction so that
// string comparison in SQL agrees with time order.
const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
	hourLayout      = "2006-01-02T15:04:05Z"
)

// sqlHourExpr renders a stored timestamp as its hour key. The output matches
// formatHour byte for byte.
const sqlHourExpr = "strftime('%Y-%m-%dT%H:00:00Z', timestamp)"

// aboveThreshold is the utilization that counts toward time_above_80.
const aboveThreshold = 80.0

// Result caps for the breakdown queries.
const (
	hostBreakdownLimit    = 50
	projectBreakdownLimit = 50
	sessionBreakdownLimit = 10
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatHour(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(hourLayout)
}

// parseTimestamp parses a stored timestamp or hour key.
func parseTimestamp(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func windowStart(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// nullString converts a string pointer to sql.NullString.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
