package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// Series colors used by the charts and their legends.
var (
	ChartPrimaryColor = lipgloss.Color("#cc785c")
	ChartInputColor   = lipgloss.Color("#4285f4")
	ChartOutputColor  = lipgloss.Color("#51cf66")
	ChartCacheColor   = lipgloss.Color("#ffd93d")
)

// ChartOptions configures a line chart. Bounds pin the y axis; leave them
// nil to scale to the data.
type ChartOptions struct {
	LowerBound *float64
	UpperBound *float64
	Caption    string
	Width      int
	Height     int
}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, opts ChartOptions) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	return asciigraph.Plot(data, plotOptions(opts, asciigraph.Default)...)
}

// RenderMultiLineChart plots several series of equal length. Shorter series
// are padded with zeros at the front so their most recent points align.
func RenderMultiLineChart(series [][]float64, colors []asciigraph.AnsiColor, opts ChartOptions) string {
	maxLen := 0
	for _, s := range series {
		maxLen = max(maxLen, len(s))
	}
	if maxLen == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	padded := make([][]float64, len(series))
	for i, s := range series {
		padded[i] = make([]float64, maxLen)
		copy(padded[i][maxLen-len(s):], s)
	}

	return asciigraph.PlotMany(padded, plotOptions(opts, colors...)...)
}

func plotOptions(opts ChartOptions, colors ...asciigraph.AnsiColor) []asciigraph.Option {
	width := max(20, opts.Width)
	height := max(3, opts.Height)

	o := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(colors...),
	}
	if opts.Caption != "" {
		o = append(o, asciigraph.Caption(opts.Caption))
	}
	if opts.LowerBound != nil {
		o = append(o, asciigraph.LowerBound(*opts.LowerBound))
	}
	if opts.UpperBound != nil {
		o = append(o, asciigraph.UpperBound(*opts.UpperBound))
	}
	return o
}

// RenderBarChart creates a simple horizontal bar chart. format renders each
// value; nil uses one decimal.
func RenderBarChart(values []float64, labels []string, width int, format func(float64) string) string {
	if len(values) == 0 {
		return ""
	}
	if format == nil {
		format = func(v float64) string { return fmt.Sprintf("%.1f", v) }
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, lipgloss.Width(l))
	}

	barWidth := max(10, width-maxLabelLen-12)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := max(0, int((v/maxVal)*float64(barWidth)))
		bar := lipgloss.NewStyle().Foreground(ChartPrimaryColor).Render(strings.Repeat("█", barLen))

		lines = append(lines, fmt.Sprintf("%*s │%s %s", maxLabelLen, label, bar, format(v)))
	}

	return strings.Join(lines, "\n")
}

// HeatmapBlocks are Unicode block characters for heatmaps (low to high intensity).
var HeatmapBlocks = []rune{'░', '▒', '▓', '█'}

// RenderHourlyHeatmap renders 24 hour-of-day buckets as a single row.
func RenderHourlyHeatmap(patterns []float64) string {
	if len(patterns) != 24 {
		padded := make([]float64, 24)
		copy(padded, patterns)
		patterns = padded
	}

	maxVal := 0.0
	for _, v := range patterns {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var result strings.Builder
	result.WriteString("00 ")

	for i, v := range patterns {
		intensity := int((v / maxVal) * float64(len(HeatmapBlocks)-1))
		intensity = max(0, min(intensity, len(HeatmapBlocks)-1))

		var style lipgloss.Style
		switch intensity {
		case 0:
			style = lipgloss.NewStyle().Foreground(styles.Subtle)
		case 1:
			style = lipgloss.NewStyle().Foreground(styles.Success)
		case 2:
			style = lipgloss.NewStyle().Foreground(styles.Warning)
		case 3:
			style = lipgloss.NewStyle().Foreground(styles.Error)
		}

		result.WriteString(style.Render(string(HeatmapBlocks[intensity])))

		if i == 11 {
			result.WriteString(" ")
		}
	}

	result.WriteString(" 23")
	return result.String()
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline creates a compact inline sparkline scaled to the largest value.
func RenderSparkline(values []float64, width int) string {
	return sparkline(values, width, nil)
}

// RenderUtilizationSparkline renders percentages on a fixed 0-100 scale,
// colored by utilization level.
func RenderUtilizationSparkline(values []float64, width int) string {
	return sparkline(values, width, func(v float64) lipgloss.Style {
		return styles.GetUtilizationStyle(v)
	})
}

func sparkline(values []float64, width int, style func(float64) lipgloss.Style) string {
	if len(values) == 0 || width < 1 {
		return ""
	}

	maxVal := 100.0
	if style == nil {
		maxVal = 0
		for _, v := range values {
			maxVal = max(maxVal, v)
		}
		if maxVal == 0 {
			maxVal = 1
		}
	}

	// Sample values to fit width.
	step := max(1, float64(len(values))/float64(width))

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		n := int((val / maxVal) * float64(len(sparkChars)-1))
		n = max(0, min(n, len(sparkChars)-1))

		if style != nil {
			result.WriteString(style(val).Render(string(sparkChars[n])))
		} else {
			result.WriteRune(sparkChars[n])
		}
	}

	return result.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}
