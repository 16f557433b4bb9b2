// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// Gradient endpoints. Utilization runs from calm to alarming; the reset bar
// fills as the window drains.
const (
	utilizationFrom = "#51cf66"
	utilizationTo   = "#ff6b6b"
	windowFrom      = "#ffd93d"
	windowTo        = "#cc785c"
)

// RenderGradientBar renders the bar characters for a utilization
// percentage. The fill color is taken from the gradient at each cell, so a
// nearly full bar ends in red.
func RenderGradientBar(percent float64, width int) string {
	return renderBar(percent/100, width, utilizationFrom, utilizationTo)
}

// RenderWindowBar renders the bar characters for the elapsed fraction of a
// rate limit window.
func RenderWindowBar(fraction float64, width int) string {
	return renderBar(fraction, width, windowFrom, windowTo)
}

func renderBar(fraction float64, width int, from, to string) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * fraction)
	filled = max(0, min(filled, width))

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(from, to, t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// UtilizationBar renders "label [bar] pct%" sized to width.
func UtilizationBar(percent float64, label string, width int) string {
	const percentWidth = 6
	barWidth := max(5, width-lipgloss.Width(label)-percentWidth-4)

	labelStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(label)

	percentStr := styles.GetUtilizationStyle(percent).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(FormatPercent(percent))

	return fmt.Sprintf("%s [%s] %s", labelStr, RenderGradientBar(percent, barWidth), percentStr)
}

// ResetBar renders the time left until a bucket resets, aligned under a
// UtilizationBar with the same label width. period is the length of the
// bucket's window; the bar shows how much of it has elapsed.
func ResetBar(resetsAt time.Time, period time.Duration, now time.Time, labelWidth, width int) string {
	const timeWidth = 6

	remaining := max(resetsAt.Sub(now), 0)
	fraction := 1.0
	if period > 0 {
		fraction = min(1, max(0, 1-float64(remaining)/float64(period)))
	}

	barWidth := max(5, width-labelWidth-timeWidth-4)
	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(timeWidth).
		Align(lipgloss.Right).
		Render(FormatCountdown(remaining))

	return fmt.Sprintf("%s [%s] %s", strings.Repeat(" ", labelWidth), RenderWindowBar(fraction, barWidth), timeStr)
}

// LoadingBar renders a shimmer placeholder while the first reading is in
// flight. frame advances the highlight.
func LoadingBar(label string, width, frame int) string {
	const cycle = 120

	barWidth := max(10, width-lipgloss.Width(label)-10)

	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(barWidth))

	var b strings.Builder
	for i := 0; i < barWidth; i++ {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}
		switch {
		case dist < 3:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}

	dots := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	dot := lipgloss.NewStyle().Foreground(styles.Primary).Render(dots[(frame/2)%len(dots)])

	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(label)
	return fmt.Sprintf("%s [%s] %s", labelStr, b.String(), dot)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
