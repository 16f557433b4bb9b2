package info

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
	"github.com/j-veylop/claude-usage-dashboard/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderGatewayCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, gateway and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	cfg := m.config()
	if cfg == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	valueWidth := m.cardWidth() - 26
	rows = append(rows,
		m.renderRow("Data Directory", components.Truncate(orNone(cfg.DataDir), valueWidth)),
		m.renderRow("Database", components.Truncate(orNone(cfg.DatabasePath), valueWidth)),
		m.renderRow("Credentials", components.Truncate(orNone(cfg.CredentialsPath), valueWidth)),
		m.renderRow("Log File", components.Truncate(orNone(cfg.LogPath()), valueWidth)),
		m.renderRow("Poll Interval", cfg.PollInterval.String()),
		m.renderRow("Retention", fmt.Sprintf("%d days", cfg.RetentionDays)),
		m.renderRow("Notifications", onOffStyled(m.notifications)),
	)

	rows = append(rows, "")
	if m.storageEnabled() {
		rows = append(rows, m.renderRow("Storage", styles.SuccessTextStyle.Render("enabled")))
		if m.loaded {
			rows = append(rows, m.renderRow("Usage Snapshots", components.FormatTokens(m.snapshots)))
		}
	} else {
		reason := "storage is disabled"
		if cfg.DataDirErr != nil {
			reason = cfg.DataDirErr.Error()
		}
		rows = append(rows, m.renderRow("Storage", styles.WarningTextStyle.Render("disabled: "+reason)))
	}
	if m.errorMsg != "" {
		rows = append(rows, styles.ErrorTextStyle.Render("Error: "+m.errorMsg))
	}

	rows = append(rows, "", styles.HelpStyle.Render("Press 'n' to toggle desktop notifications"))

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderGatewayCard() string {
	rows := []string{styles.CardTitleStyle.Render("Gateway"), ""}

	var addr string
	if m.source != nil {
		if a := m.source.GatewayAddr(); a != nil {
			addr = a.String()
		}
	}

	if addr == "" {
		rows = append(rows, m.renderRow("Status", styles.WarningTextStyle.Render("not running")))
	} else {
		rows = append(rows,
			m.renderRow("Status", styles.SuccessTextStyle.Render("listening")),
			m.renderRow("Address", addr),
			m.renderRow("Token Hook", "POST http://"+addr+"/api/v1/tokens"),
			m.renderRow("Health", "GET /api/v1/health"),
		)
	}

	secret := ""
	if m.source != nil {
		secret = m.source.Secret()
	}
	if secret != "" {
		rows = append(rows,
			m.renderRow("Secret", maskSecret(secret)),
			"",
			styles.HelpStyle.Render("Press 'c' to copy the secret. Send it as a Bearer token."),
		)
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About Claude Usage Dashboard"),
		"",
		m.renderRow("Version", version.GetVersion()),
		m.renderRow("Build Date", version.GetDate()),
		m.renderRow("Git Commit", version.GetCommit()),
		m.renderRow("Go Version", runtime.Version()),
		m.renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	if labels := m.state.BucketLabels(); len(labels) > 0 {
		rows = append(rows, "", fmt.Sprintf("Buckets: %s", styles.InfoTextStyle.Render(strings.Join(labels, ", "))))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// maskSecret keeps the first and last four characters.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("•", len(s))
	}
	return s[:4] + strings.Repeat("•", 8) + s[len(s)-4:]
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func onOffStyled(b bool) string {
	if b {
		return styles.SuccessTextStyle.Render("on")
	}
	return styles.HelpStyle.Render("off")
}
