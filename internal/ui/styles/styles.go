// Package styles holds the dashboard palette and shared lipgloss styles.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette, in 256-color codes so it renders the same on most terminals.
var (
	Primary = lipgloss.Color("173") // terracotta
	Subtle  = lipgloss.Color("240")

	Success = lipgloss.Color("42")
	Error   = lipgloss.Color("196")
	Warning = lipgloss.Color("220")
	Info    = lipgloss.Color("39")

	BgDark  = lipgloss.Color("235")
	BgLight = lipgloss.Color("237")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().Margin(1, 2).Padding(0, 1)

// TitleStyle is used for tab headings.
var TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)

// HelpStyle is the base style for hints and muted text.
var HelpStyle = lipgloss.NewStyle().Foreground(TextMuted)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// ToastStyle for floating notifications.
var ToastStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Primary).
	Padding(0, 1).
	MarginBottom(1)

// TableHeaderStyle styles breakdown table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(Subtle)

// TableSelectedStyle styles the selected breakdown row.
var TableSelectedStyle = lipgloss.NewStyle().Background(BgLight).Foreground(TextPrimary).Bold(true)

// Status text.
var (
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// utilizationLevels is ordered from the highest threshold down. 80 and 95
// are also the desktop notification thresholds.
var utilizationLevels = []struct {
	style lipgloss.Style
	min   float64
}{
	{lipgloss.NewStyle().Foreground(Error).Bold(true), 95},
	{lipgloss.NewStyle().Foreground(Error), 80},
	{lipgloss.NewStyle().Foreground(Warning), 50},
	{lipgloss.NewStyle().Foreground(Success), 0},
}

// GetUtilizationStyle returns the style for a utilization percentage.
func GetUtilizationStyle(percent float64) lipgloss.Style {
	for _, l := range utilizationLevels {
		if percent >= l.min {
			return l.style
		}
	}
	return utilizationLevels[len(utilizationLevels)-1].style
}

// GetTrendStyle returns the style for a trend arrow. Rising usage is bad news.
func GetTrendStyle(trend string) lipgloss.Style {
	switch trend {
	case "up":
		return lipgloss.NewStyle().Foreground(Error).Bold(true)
	case "down":
		return lipgloss.NewStyle().Foreground(Success)
	default:
		return lipgloss.NewStyle().Foreground(TextSecondary)
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
