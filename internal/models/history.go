package models

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned by ParseHistoryRangeStrict for unknown names.
var ErrInvalidRange = errors.New("invalid history range (want 1h, 24h, 7d, 30d or all)")

// HistoryRange selects the lookback window and resolution of a history query.
type HistoryRange int

const (
	// Range1Hour reads granular rows from the last hour.
	Range1Hour HistoryRange = iota
	// Range24Hours reads granular rows from the last 24 hours.
	Range24Hours
	// Range7Days reads granular rows from the last 7 days.
	Range7Days
	// Range30Days combines hourly aggregates with granular rows.
	Range30Days
	// RangeAll covers one year of hourly aggregates and granular rows.
	RangeAll
)

var historyRanges = []HistoryRange{Range1Hour, Range24Hours, Range7Days, Range30Days, RangeAll}

// ParseHistoryRange maps a range name to a HistoryRange. Unknown names fall
// back to the 24 hour range.
func ParseHistoryRange(s string) HistoryRange {
	r, err := ParseHistoryRangeStrict(s)
	if err != nil {
		return Range24Hours
	}
	return r
}

// ParseHistoryRangeStrict is ParseHistoryRange without the fallback.
func ParseHistoryRangeStrict(s string) (HistoryRange, error) {
	for _, r := range historyRanges {
		if r.String() == s {
			return r, nil
		}
	}
	return Range24Hours, ErrInvalidRange
}

// String returns the wire name of the range.
func (r HistoryRange) String() string {
	switch r {
	case Range1Hour:
		return "1h"
	case Range24Hours:
		return "24h"
	case Range7Days:
		return "7d"
	case Range30Days:
		return "30d"
	case RangeAll:
		return "all"
	default:
		return "24h"
	}
}

// Label returns the display name for a range.
func (r HistoryRange) Label() string {
	switch r {
	case Range1Hour:
		return "1 Hour"
	case Range24Hours:
		return "24 Hours"
	case Range7Days:
		return "7 Days"
	case Range30Days:
		return "30 Days"
	case RangeAll:
		return "All Time"
	default:
		return "24 Hours"
	}
}

// Lookback returns how far back the range reaches.
func (r HistoryRange) Lookback() time.Duration {
	switch r {
	case Range1Hour:
		return time.Hour
	case Range7Days:
		return 7 * 24 * time.Hour
	case Range30Days:
		return 30 * 24 * time.Hour
	case RangeAll:
		return 365 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// UsesHourly reports whether the range reads the hourly aggregate tables.
func (r HistoryRange) UsesHourly() bool {
	return r == Range30Days || r == RangeAll
}

// PointCap is the maximum number of points returned for the range.
func (r HistoryRange) PointCap() int {
	switch r {
	case Range1Hour:
		return 60
	case Range7Days:
		return 672
	case Range30Days, RangeAll:
		return 720
	default:
		return 1440
	}
}

// Days returns the lookback rounded up to whole days, for stats queries.
func (r HistoryRange) Days() int {
	d := int(r.Lookback() / (24 * time.Hour))
	if d < 1 {
		return 1
	}
	return d
}

// Next cycles to the next range.
func (r HistoryRange) Next() HistoryRange {
	return (r + 1) % HistoryRange(len(historyRanges))
}

// DataPoint is one utilization sample, or the mean of a downsampled chunk.
type DataPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Utilization float64   `json:"utilization"`
}

// TokenDataPoint is one token report, an hourly total, or the sum of a
// downsampled chunk.
type TokenDataPoint struct {
	Timestamp                time.Time `json:"timestamp"`
	InputTokens              int64     `json:"input_tokens"`
	OutputTokens             int64     `json:"output_tokens"`
	CacheCreationInputTokens int64     `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64     `json:"cache_read_input_tokens"`
	TotalTokens              int64     `json:"total_tokens"`
}

// NewTokenDataPoint fills TotalTokens from the four counters.
func NewTokenDataPoint(ts time.Time, input, output, cacheCreation, cacheRead int64) TokenDataPoint {
	return TokenDataPoint{
		Timestamp:                ts,
		InputTokens:              input,
		OutputTokens:             output,
		CacheCreationInputTokens: cacheCreation,
		CacheReadInputTokens:     cacheRead,
		TotalTokens:              input + output + cacheCreation + cacheRead,
	}
}
