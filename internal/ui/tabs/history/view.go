package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	switch {
	case m.source == nil || !m.source.StorageEnabled():
		return m.renderMessage(
			styles.WarningTextStyle.Render("History is unavailable: storage is disabled."),
			styles.HelpStyle.Render("Check the log for the data directory error."),
		)
	case m.loading && !m.loaded:
		return m.renderMessage(styles.HelpStyle.Render("Loading history data..."))
	case m.errorMsg != "":
		return m.renderMessage(fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg))
	}

	sections := []string{m.renderHeader()}
	if len(m.points) == 0 {
		sections = append(sections,
			styles.HelpStyle.Render("No samples recorded for this bucket in the selected range."),
			styles.HelpStyle.Render("Data will appear as usage snapshots are recorded."),
		)
	} else {
		sections = append(sections, m.renderChart(), m.renderStats())
	}
	sections = append(sections, m.renderComparison())

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderMessage(lines ...string) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{styles.TitleStyle.Render("History"), ""}, lines...)...)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("History: " + m.currentBucket())

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.Label()))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if first, last := m.dataSpan(); !first.IsZero() {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("Data: %s → %s (%d points)",
			first.Local().Format("Jan 2 15:04"),
			last.Local().Format("Jan 2 15:04"),
			len(m.points),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) cardTitle(icon, text string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(text))
}

func (m *Model) renderChart() string {
	cardWidth := max(m.width-6, 40)

	values := make([]float64, len(m.points))
	for i, p := range m.points {
		values[i] = p.Utilization
	}

	lower, upper := 0.0, 100.0
	chart := components.RenderLineChart(values, components.ChartOptions{
		Width:      max(cardWidth-14, 30),
		Height:     8,
		LowerBound: &lower,
		UpperBound: &upper,
		Caption:    fmt.Sprintf("Utilization (%%) - last %s", m.timeRange.Label()),
	})

	rows := []string{m.cardTitle("◈", "Utilization"), ""}
	for _, line := range strings.Split(chart, "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "", "  "+components.RenderUtilizationSparkline(values, max(cardWidth-10, 20)))

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderStats() string {
	cardWidth := max(m.width-6, 40)
	s := m.stats

	label := lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(16)
	value := lipgloss.NewStyle().Bold(true)

	row := func(name, v string) string {
		return "  " + label.Render(name) + value.Render(v)
	}

	rows := []string{
		m.cardTitle("◈", fmt.Sprintf("Statistics (%d days)", m.timeRange.Days())),
		"",
		row("Current", styles.GetUtilizationStyle(s.Current).Render(components.FormatPercent(s.Current))),
		row("Trend", styles.GetTrendStyle(string(s.Trend)).Render(fmt.Sprintf("%s %s", s.Trend.Arrow(), s.Trend))),
		row("Average", fmt.Sprintf("%.1f%%", s.Avg)),
		row("Peak", fmt.Sprintf("%.1f%%", s.Max)),
		row("Low", fmt.Sprintf("%.1f%%", s.Min)),
		row("Above 80%", fmt.Sprintf("%.1f%% of samples", s.TimeAbove80)),
		row("Samples", fmt.Sprintf("%d", s.SampleCount)),
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderComparison shows the average of every bucket side by side, using
// the statistics the app loads with each reading.
func (m *Model) renderComparison() string {
	var (
		values []float64
		labels []string
	)
	for _, label := range m.state.BucketLabels() {
		st, ok := m.state.GetBucketStats(label)
		if !ok || st.SampleCount == 0 {
			continue
		}
		values = append(values, st.Avg)
		labels = append(labels, label)
	}
	if len(values) == 0 {
		return ""
	}

	cardWidth := max(m.width-6, 40)
	rows := []string{m.cardTitle("◈", "Average by Bucket"), ""}
	for _, line := range strings.Split(components.RenderBarChart(values, labels, cardWidth-10, components.FormatPercent), "\n") {
		rows = append(rows, "  "+line)
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
