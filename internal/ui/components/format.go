package components

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// FormatPercent formats a utilization percentage without decimals.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

// FormatCountdown formats the time left in a window: "4d 03h", "2h 05m" or
// "12m". Non-positive durations read "now".
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %02dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "<1m"
	}
}

// FormatTokens formats a token count with thousands separators.
func FormatTokens(n int64) string {
	return humanize.Comma(n)
}

// FormatTokensCompact formats a token count with an SI suffix, e.g. "1.2M".
func FormatTokensCompact(n int64) string {
	if n < 1000 && n > -1000 {
		return strconv.FormatInt(n, 10)
	}
	return strings.ReplaceAll(humanize.SIWithDigits(float64(n), 1, ""), " ", "")
}

// FormatAgo formats t relative to now. The zero time reads "never".
func FormatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Truncate shortens s to width cells, ending in an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}
