package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

const (
	labelFiveHour = "per 5 hours"
	labelSevenDay = "per 7 days"

	indentSpace  = "    "
	percentWidth = 6
	resetWidth   = 16 // " resets Mon 15:04"
)

// windowPeriod is the length of a bucket's rolling window.
func windowPeriod(label string) time.Duration {
	if label == labelFiveHour {
		return 5 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// View renders the usage tab.
func (m *Model) View() string {
	data, ok := m.state.GetUsage()

	var sections []string
	sections = append(sections, m.renderTitle())

	switch {
	case !ok && m.state.IsInitialLoading():
		sections = append(sections, m.renderLoadingCard())
	case !ok:
		sections = append(sections, components.RenderSpinnerCentered(m.spinner, m.width, 3))
	default:
		sections = append(sections, m.renderBucketCard(data))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Claude Usage")
	subtitle := styles.HelpStyle.Render("Subscription rate limit utilization")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func (m *Model) cardHeader(text string) string {
	icon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	return fmt.Sprintf("%s %s", icon, styles.CardTitleStyle.Render(text))
}

func (m *Model) renderLoadingCard() string {
	width := m.cardWidth() - 8
	rows := []string{m.cardHeader("Rate Limits"), ""}
	for _, label := range []string{labelFiveHour, labelSevenDay} {
		rows = append(rows, indentSpace+components.LoadingBar(label, width, m.animationFrame), "")
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBucketCard(data models.UsageData) string {
	cardWidth := m.cardWidth()
	rows := []string{m.cardHeader("Rate Limits"), ""}

	if !data.OK() {
		rows = append(rows, "  "+styles.ErrorTextStyle.Render("⚠ "+data.Unavailable()))
		if len(data.Buckets) > 0 {
			rows = append(rows, "  "+styles.HelpStyle.Render("Showing the last successful reading"))
		}
		rows = append(rows, "")
	}

	if len(data.Buckets) == 0 {
		if data.OK() {
			emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
			rows = append(rows, fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No quota buckets reported")))
		}
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	dividerWidth := max(cardWidth-8, 20)
	divider := lipgloss.NewStyle().Foreground(styles.Subtle).Render(
		"  ├" + strings.Repeat("─", dividerWidth) + "┤",
	)

	now := m.now()
	selected := min(m.selectedIndex, len(data.Buckets)-1)
	for i, b := range data.Buckets {
		rows = append(rows, m.renderBucket(b, i == selected, cardWidth-4, now)...)
		if i < len(data.Buckets)-1 {
			rows = append(rows, "", divider, "")
		}
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBucket(b models.UsageBucket, selected bool, width int, now time.Time) []string {
	prefix := "  "
	if selected {
		prefix = lipgloss.NewStyle().Foreground(styles.Primary).Render("▸ ")
	}
	header := prefix + lipgloss.NewStyle().Bold(true).Render(b.Label)

	stats, hasStats := m.state.GetBucketStats(b.Label)
	if hasStats {
		header += "  " + styles.GetTrendStyle(string(stats.Trend)).Render(stats.Trend.Arrow())
	}

	contentWidth := max(width-len(indentSpace)-4, 20)
	barWidth := max(contentWidth-percentWidth-1-resetWidth, 10)

	percentStr := styles.GetUtilizationStyle(b.Utilization).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(components.FormatPercent(b.Utilization))
	bar := components.RenderGradientBar(m.displayPercent(b.Label, b.Utilization), barWidth)

	lines := []string{header, indentSpace + bar + " " + percentStr}

	if b.ResetsAt != nil {
		lines = append(lines, m.renderResetLine(b, *b.ResetsAt, barWidth, now))
	}

	if hasStats && stats.SampleCount > 0 {
		lines = append(lines, indentSpace+styles.HelpStyle.Render(fmt.Sprintf(
			"avg %.0f%%  max %.0f%%  min %.0f%%  above 80%%: %.0f%% of %d samples",
			stats.Avg, stats.Max, stats.Min, stats.TimeAbove80, stats.SampleCount,
		)))
	}

	return lines
}

func (m *Model) renderResetLine(b models.UsageBucket, resetsAt time.Time, barWidth int, now time.Time) string {
	period := windowPeriod(b.Label)
	remaining := max(resetsAt.Sub(now), 0)
	fraction := min(1, max(0, 1-float64(remaining)/float64(period)))

	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(components.FormatCountdown(remaining))

	resetAt := styles.HelpStyle.Render(" resets " + resetsAt.Local().Format("Mon 15:04"))

	return indentSpace + components.RenderWindowBar(fraction, barWidth) + " " + timeStr + resetAt
}
