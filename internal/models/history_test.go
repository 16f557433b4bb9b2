package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseHistoryRange(t *testing.T) {
	tests := []struct {
		in   string
		want HistoryRange
	}{
		{"1h", Range1Hour},
		{"24h", Range24Hours},
		{"7d", Range7Days},
		{"30d", Range30Days},
		{"all", RangeAll},
		{"", Range24Hours},
		{"90d", Range24Hours},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseHistoryRange(tt.in); got != tt.want {
				t.Errorf("ParseHistoryRange(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHistoryRangeStrict(t *testing.T) {
	if _, err := ParseHistoryRangeStrict("week"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	r, err := ParseHistoryRangeStrict("7d")
	if err != nil || r != Range7Days {
		t.Errorf("ParseHistoryRangeStrict(7d) = %v, %v", r, err)
	}
}

func TestHistoryRange_Resolution(t *testing.T) {
	tests := []struct {
		r        HistoryRange
		lookback time.Duration
		hourly   bool
		cap      int
	}{
		{Range1Hour, time.Hour, false, 60},
		{Range24Hours, 24 * time.Hour, false, 1440},
		{Range7Days, 7 * 24 * time.Hour, false, 672},
		{Range30Days, 30 * 24 * time.Hour, true, 720},
		{RangeAll, 365 * 24 * time.Hour, true, 720},
		{HistoryRange(99), 24 * time.Hour, false, 1440},
	}
	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			if got := tt.r.Lookback(); got != tt.lookback {
				t.Errorf("Lookback() = %v, want %v", got, tt.lookback)
			}
			if got := tt.r.UsesHourly(); got != tt.hourly {
				t.Errorf("UsesHourly() = %v, want %v", got, tt.hourly)
			}
			if got := tt.r.PointCap(); got != tt.cap {
				t.Errorf("PointCap() = %d, want %d", got, tt.cap)
			}
		})
	}
}

func TestHistoryRange_Next(t *testing.T) {
	r := Range1Hour
	seen := []string{}
	for i := 0; i < 5; i++ {
		seen = append(seen, r.String())
		r = r.Next()
	}
	if r != Range1Hour {
		t.Errorf("expected cycle back to 1h, got %v", r)
	}
	want := []string{"1h", "24h", "7d", "30d", "all"}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestHistoryRange_Days(t *testing.T) {
	if Range1Hour.Days() != 1 {
		t.Errorf("1h should round up to 1 day, got %d", Range1Hour.Days())
	}
	if Range30Days.Days() != 30 {
		t.Errorf("30d = %d days", Range30Days.Days())
	}
}

func TestNewTokenDataPoint(t *testing.T) {
	p := NewTokenDataPoint(time.Now(), 1, 2, 3, 4)
	if p.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", p.TotalTokens)
	}
}
