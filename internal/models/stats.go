package models

import "time"

// Trend is the direction of utilization over the last two hours.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendFlat    Trend = "flat"
	TrendUnknown Trend = "unknown"
)

// TrendThreshold is the difference in mean utilization, in percentage
// points, needed before a trend counts as up or down.
const TrendThreshold = 2.0

// TrendFrom compares the mean of the most recent hour with the hour before it.
// A nil mean means the window held no samples.
func TrendFrom(recent, previous *float64) Trend {
	if recent == nil || previous == nil {
		return TrendUnknown
	}
	switch {
	case *recent > *previous+TrendThreshold:
		return TrendUp
	case *recent < *previous-TrendThreshold:
		return TrendDown
	default:
		return TrendFlat
	}
}

// Arrow returns a compact glyph for the trend.
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	case TrendFlat:
		return "→"
	default:
		return "?"
	}
}

// BucketStats summarizes one bucket over a lookback window.
type BucketStats struct {
	Label       string  `json:"label"`
	Trend       Trend   `json:"trend"`
	Current     float64 `json:"current"`
	Avg         float64 `json:"avg"`
	Max         float64 `json:"max"`
	Min         float64 `json:"min"`
	TimeAbove80 float64 `json:"time_above_80"`
	SampleCount int64   `json:"sample_count"`
}

// TokenStats sums reported token usage over a lookback window.
type TokenStats struct {
	TotalInput         int64   `json:"total_input"`
	TotalOutput        int64   `json:"total_output"`
	TotalCacheCreation int64   `json:"total_cache_creation"`
	TotalCacheRead     int64   `json:"total_cache_read"`
	TotalTokens        int64   `json:"total_tokens"`
	TurnCount          int64   `json:"turn_count"`
	AvgInputPerTurn    float64 `json:"avg_input_per_turn"`
	AvgOutputPerTurn   float64 `json:"avg_output_per_turn"`
}

// NewTokenStats derives totals and per-turn averages from raw sums.
func NewTokenStats(input, output, cacheCreation, cacheRead, turns int64) TokenStats {
	s := TokenStats{
		TotalInput:         input,
		TotalOutput:        output,
		TotalCacheCreation: cacheCreation,
		TotalCacheRead:     cacheRead,
		TotalTokens:        input + output + cacheCreation + cacheRead,
		TurnCount:          turns,
	}
	if turns > 0 {
		s.AvgInputPerTurn = float64(input) / float64(turns)
		s.AvgOutputPerTurn = float64(output) / float64(turns)
	}
	return s
}

// HostBreakdown aggregates token usage per reporting machine.
type HostBreakdown struct {
	LastActive  time.Time `json:"last_active"`
	Hostname    string    `json:"hostname"`
	TotalTokens int64     `json:"total_tokens"`
	TurnCount   int64     `json:"turn_count"`
}

// ProjectBreakdown aggregates token usage per working directory and host.
type ProjectBreakdown struct {
	LastActive   time.Time `json:"last_active"`
	Project      string    `json:"project"`
	Hostname     string    `json:"hostname"`
	TotalTokens  int64     `json:"total_tokens"`
	TurnCount    int64     `json:"turn_count"`
	SessionCount int64     `json:"session_count"`
}

// SessionBreakdown aggregates token usage per session. Project is the most
// recent working directory reported for the session, if any.
type SessionBreakdown struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastActive  time.Time `json:"last_active"`
	Project     *string   `json:"project"`
	SessionID   string    `json:"session_id"`
	Hostname    string    `json:"hostname"`
	TotalTokens int64     `json:"total_tokens"`
	TurnCount   int64     `json:"turn_count"`
}
