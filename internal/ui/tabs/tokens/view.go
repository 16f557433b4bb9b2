package tokens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// View renders the tokens tab.
func (m *Model) View() string {
	switch {
	case !m.storageEnabled():
		return m.renderMessage(styles.WarningTextStyle.Render("Token usage is unavailable: storage is disabled."))
	case m.loading && !m.loaded:
		return m.renderMessage(styles.HelpStyle.Render("Loading token usage..."))
	case m.errorMsg != "":
		return m.renderMessage(fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg))
	}

	sections := []string{m.renderHeader()}
	if m.stats.TurnCount == 0 && len(m.rows) == 0 {
		sections = append(sections,
			styles.HelpStyle.Render("No token reports in the selected range."),
			styles.HelpStyle.Render("Reports arrive from the hook endpoint of the local gateway."),
		)
	} else {
		sections = append(sections, m.renderTotals(), m.renderChart(), m.renderBreakdown())
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderMessage(lines ...string) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{styles.TitleStyle.Render("Tokens"), ""}, lines...)...)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func (m *Model) cardTitle(text string) string {
	icon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	return fmt.Sprintf("%s %s", icon, styles.CardTitleStyle.Render(text))
}

func (m *Model) renderHeader() string {
	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.TitleStyle.Render("Tokens"),
		"  ",
		rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.Label())),
	)

	var chips []string
	if m.filter.host != "" {
		chips = append(chips, "host: "+m.filter.host)
	}
	if m.filter.project != "" {
		chips = append(chips, "project: "+components.Truncate(m.filter.project, 40))
	}
	if m.filter.session != "" {
		chips = append(chips, "session: "+components.Truncate(m.filter.session, 12))
	}

	subtitle := styles.HelpStyle.Render("All hosts and projects")
	if len(chips) > 0 {
		subtitle = styles.InfoTextStyle.Render("Filtered by " + strings.Join(chips, ", ") + "  (x to clear)")
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderTotals() string {
	s := m.stats
	label := lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(18)
	value := lipgloss.NewStyle().Bold(true).Width(16).Align(lipgloss.Right)

	line := func(name string, n int64) string {
		return "  " + label.Render(name) + value.Render(components.FormatTokens(n))
	}

	rows := []string{
		m.cardTitle(fmt.Sprintf("Totals (%d days)", m.timeRange.Days())),
		"",
		line("Input", s.TotalInput),
		line("Output", s.TotalOutput),
		line("Cache writes", s.TotalCacheCreation),
		line("Cache reads", s.TotalCacheRead),
		line("Total", s.TotalTokens),
		line("Turns", s.TurnCount),
		"",
		styles.HelpStyle.Render(fmt.Sprintf("  avg per turn: %s in / %s out",
			components.FormatTokensCompact(int64(s.AvgInputPerTurn)),
			components.FormatTokensCompact(int64(s.AvgOutputPerTurn)),
		)),
	}
	if m.filter.session != "" {
		rows = append(rows, styles.HelpStyle.Render("  totals ignore the session filter"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderChart() string {
	cardWidth := m.cardWidth()
	rows := []string{m.cardTitle("Tokens over time"), ""}

	if len(m.history) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No data points in range"))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	input := make([]float64, len(m.history))
	output := make([]float64, len(m.history))
	for i, p := range m.history {
		input[i] = float64(p.InputTokens)
		output[i] = float64(p.OutputTokens)
	}

	chart := components.RenderMultiLineChart(
		[][]float64{input, output},
		[]asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Green},
		components.ChartOptions{
			Width:   max(cardWidth-16, 30),
			Height:  8,
			Caption: fmt.Sprintf("Input and output tokens - last %s", m.timeRange.Label()),
		},
	)
	for _, line := range strings.Split(chart, "\n") {
		rows = append(rows, "  "+line)
	}

	rows = append(rows,
		"",
		"  "+components.RenderLegend([]components.LegendItem{
			{Label: "Input", Color: components.ChartInputColor},
			{Label: "Output", Color: components.ChartOutputColor},
		}),
		"",
		"  "+styles.HelpStyle.Render("Activity by hour of day"),
		"  "+components.RenderHourlyHeatmap(hourlyTotals(m.history)),
	)

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// hourlyTotals sums total tokens per local hour of day.
func hourlyTotals(points []models.TokenDataPoint) []float64 {
	out := make([]float64, 24)
	for _, p := range points {
		out[p.Timestamp.Local().Hour()] += float64(p.TotalTokens)
	}
	return out
}

func (m *Model) renderBreakdown() string {
	cardWidth := m.cardWidth()
	inner := cardWidth - 8

	rows := []string{m.cardTitle(fmt.Sprintf("%s (%d)  [v] switch", m.mode, len(m.rows))), ""}

	if len(m.rows) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  Nothing reported in range"))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	const (
		totalWidth = 12
		turnsWidth = 8
	)
	extraWidth := 18
	if m.mode == ViewSessions {
		extraWidth = 28
	}
	labelWidth := max(12, inner-totalWidth-turnsWidth-extraWidth-4)

	cell := func(s string, w int, right bool) string {
		st := lipgloss.NewStyle().Width(w)
		if right {
			st = st.Align(lipgloss.Right)
		}
		return st.Render(components.Truncate(s, w))
	}

	extraHeader := "last active"
	switch m.mode {
	case ViewProjects:
		extraHeader = "sessions"
	case ViewSessions:
		extraHeader = "project"
	}
	header := "  " + cell(strings.ToLower(m.mode.String()), labelWidth, false) +
		cell("tokens", totalWidth, true) + cell("turns", turnsWidth, true) + "  " + cell(extraHeader, extraWidth, false)
	rows = append(rows, styles.TableHeaderStyle.Render(header))

	for i, r := range m.rows {
		label := r.label
		if m.mode != ViewHosts {
			label = r.label + " @" + r.host
		}
		line := cell(label, labelWidth, false) +
			cell(components.FormatTokens(r.total), totalWidth, true) +
			cell(fmt.Sprintf("%d", r.turns), turnsWidth, true) + "  " +
			cell(r.extra, extraWidth, false)

		if i == m.selected {
			rows = append(rows, styles.TableSelectedStyle.Render("▸ "+line))
		} else {
			rows = append(rows, "  "+line)
		}
	}

	if m.confirm != nil {
		rows = append(rows, "", styles.WarningTextStyle.Render(fmt.Sprintf(
			"  Delete all token data for %s %q? (y/n)", strings.ToLower(strings.TrimSuffix(m.confirm.mode.String(), "s")), m.confirm.label)))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
