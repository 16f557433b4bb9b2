package components

import (
	"testing"
	"time"
)

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		want string
		d    time.Duration
	}{
		{"now", 0},
		{"now", -time.Minute},
		{"<1m", 20 * time.Second},
		{"12m", 12 * time.Minute},
		{"2h 05m", 2*time.Hour + 5*time.Minute},
		{"4d 03h", 4*24*time.Hour + 3*time.Hour},
	}
	for _, tt := range tests {
		if got := FormatCountdown(tt.d); got != tt.want {
			t.Errorf("FormatCountdown(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	if got := FormatTokens(1234567); got != "1,234,567" {
		t.Errorf("FormatTokens = %q", got)
	}

	tests := []struct {
		want string
		n    int64
	}{
		{"999", 999},
		{"1.5k", 1500},
		{"2M", 2_000_000},
		{"1.2M", 1_234_567},
	}
	for _, tt := range tests {
		if got := FormatTokensCompact(tt.n); got != tt.want {
			t.Errorf("FormatTokensCompact(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatAgo(time.Time{}, now); got != "never" {
		t.Errorf("zero time = %q", got)
	}
	if got := FormatAgo(now.Add(-5*time.Minute), now); got != "5 minutes ago" {
		t.Errorf("FormatAgo = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("/home/me/projects/dashboard", 10); got != "/home/me/…" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
