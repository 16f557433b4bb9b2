// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/claude-usage-dashboard/internal/services"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabUsage shows the live utilization of every bucket.
	TabUsage TabID = iota
	// TabHistory charts stored utilization over time.
	TabHistory
	// TabTokens shows reported token usage and its breakdowns.
	TabTokens
	// TabInfo shows paths, gateway details and build information.
	TabInfo

	tabCount = int(TabInfo) + 1
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabUsage:
		return "Usage"
	case TabHistory:
		return "History"
	case TabTokens:
		return "Tokens"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	Tab4    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "usage")),
		Tab2:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "history")),
		Tab3:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "tokens")),
		Tab4:    key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info")),
		NextTab: key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Styles defines the application styles.
type Styles struct {
	// Tab bar styles
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	StatusBar   lipgloss.Style

	// Notification styles
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content lipgloss.Style
	Toast   lipgloss.Style

	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#C15F3C", Dark: "#DA7756"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	s := Styles{}
	s.TabBar = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).BorderForeground(subtle)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2)
	s.InactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)
	s.StatusBar = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)

	s.NotificationSuccess = lipgloss.NewStyle().Foreground(success).Padding(0, 1)
	s.NotificationError = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1)
	s.NotificationWarning = lipgloss.NewStyle().Foreground(warning).Padding(0, 1)
	s.NotificationInfo = lipgloss.NewStyle().Foreground(info).Padding(0, 1)

	s.Content = lipgloss.NewStyle().Padding(1, 2)
	s.Toast = styles.ToastStyle

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)

	return s
}

// Model is the main application model.
type Model struct {
	state    *State
	services *services.Manager

	eventChannel chan services.ServiceEvent

	tabs     []Tab
	tabNames []string
	styles   Styles
	keymap   KeyMap
	spinner  spinner.Model

	activeTab TabID
	width     int
	height    int
	showHelp  bool
	ready     bool
}

// NewModel initializes a new application model. mgr may be nil in tests.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	names := make([]string, tabCount)
	for i := range names {
		names[i] = TabID(i).String()
	}

	return &Model{
		activeTab: TabUsage,
		tabNames:  names,
		tabs:      make([]Tab, tabCount),
		state:     NewState(),
		services:  mgr,
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model, in TabID order.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Fetching usage...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		expiryTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds,
			subscribeToServicesCmd(m.services),
			loadInitialData(m.services),
		)
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()

	case tea.KeyMsg:
		if m.showHelp {
			// The help overlay swallows keys until it is closed.
			return m, m.handleHelpKey(msg)
		}
		if cmd := m.handleKeyMsg(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, expiryTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event)...)
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case UsageLoadedMsg:
		cmds = append(cmds, m.handleUsageLoaded(msg))
	case BucketStatsLoadedMsg:
		m.state.SetLoading(ResourceStats, false)
		if msg.Err != nil {
			cmds = append(cmds, notify(NotificationError, fmt.Sprintf("Failed to load statistics: %v", msg.Err)))
		} else {
			m.state.SetBucketStats(msg.Stats)
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing...")
	case CopyToClipboardMsg:
		cmds = append(cmds, copyToClipboardCmd(msg.Text, msg.Label))
	case ClipboardResultMsg:
		if msg.Error != nil {
			cmds = append(cmds, notify(NotificationError, fmt.Sprintf("Failed to copy %s: %v", msg.Label, msg.Error)))
		} else {
			cmds = append(cmds, notify(NotificationSuccess, fmt.Sprintf("Copied %s to clipboard", msg.Label)))
		}
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()
	}
	return cmds
}

func (m *Model) handleUsageLoaded(msg UsageLoadedMsg) tea.Cmd {
	m.state.SetUsage(msg.Data)
	m.state.SetLoading(ResourceInitial, false)
	m.state.SetLoading(ResourceUsage, false)
	m.clearLoadingIfIdle()

	if m.services == nil || !msg.Data.OK() {
		return nil
	}
	m.state.SetLoading(ResourceStats, true)
	return loadBucketStatsCmd(m.services)
}

func (m *Model) clearLoadingIfIdle() {
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil {
		return nil
	}

	cmds := []tea.Cmd{func() tea.Msg { return StartLoadingMsg(msg) }}
	switch msg.Resource {
	case ResourceUsage:
		cmds = append(cmds, refreshUsageCmd(m.services))
	case ResourceStats:
		cmds = append(cmds, loadBucketStatsCmd(m.services))
	}
	return cmds
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) []tea.Cmd {
	switch e := event.(type) {
	case services.UsageUpdatedEvent:
		return []tea.Cmd{func() tea.Msg { return UsageLoadedMsg(e) }}

	case services.TokensUpdatedEvent:
		m.state.SetLastReport(e.Report)
		return []tea.Cmd{func() tea.Msg { return TokensReportedMsg(e) }}

	case services.CredentialsChangedEvent:
		return []tea.Cmd{notify(NotificationInfo, "Credentials changed, refreshing usage")}

	case services.ErrorEvent:
		return []tea.Cmd{notify(NotificationError, fmt.Sprintf("[%s] %v", e.Service, e.Error))}
	}
	return nil
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	// Navbar (two lines) and status bar.
	contentHeight := max(0, m.height-3)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(id TabID) tea.Cmd {
	return func() tea.Msg { return TabSwitchMsg{Tab: id} }
}

func (m *Model) handleHelpKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit
	case key.Matches(msg, m.keymap.Help), key.Matches(msg, m.keymap.Escape):
		m.showHelp = false
	}
	return nil
}

// handleKeyMsg handles global keys. Keys it does not consume still reach
// the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	n := len(m.tabs)

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabUsage)

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabHistory)

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabTokens)

	case key.Matches(msg, m.keymap.Tab4):
		return m.switchTab(TabInfo)

	case key.Matches(msg, m.keymap.NextTab):
		return m.switchTab(TabID((int(m.activeTab) + 1) % n))

	case key.Matches(msg, m.keymap.PrevTab):
		return m.switchTab(TabID((int(m.activeTab) - 1 + n) % n))

	case key.Matches(msg, m.keymap.Refresh):
		if m.activeTab == TabUsage {
			return func() tea.Msg { return RefreshMsg{Resource: ResourceUsage} }
		}
	}

	return nil
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := padLines(strings.Split(mainView, "\n"), m.height)
	overlayLines := strings.Split(overlay, "\n")

	overlayWidth := lipgloss.Width(overlay)
	y := max((m.height-len(overlayLines))/2, 0)
	x := max((m.width-overlayWidth)/2, 0)

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]
		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

// padLines extends lines to n entries so overlays below short content
// still have rows to land on.
func padLines(lines []string, n int) []string {
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, len(m.tabNames))

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

// renderStatusBar shows gateway state and the age of the last reading.
func (m *Model) renderStatusBar() string {
	var parts []string

	if m.services != nil {
		if addr := m.services.GatewayAddr(); addr != nil {
			parts = append(parts, "gateway "+addr.String())
		} else if !m.services.StorageEnabled() {
			parts = append(parts, "storage disabled")
		}
	}

	if age := m.state.TimeSinceUpdate(); age > 0 {
		parts = append(parts, fmt.Sprintf("updated %s ago", age.Round(time.Second)))
	}
	parts = append(parts, "? help")

	return m.styles.StatusBar.Width(m.width).Render(strings.Join(parts, "  ·  "))
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = m.styles.NotificationSuccess, "[OK]"
		case NotificationError:
			style, prefix = m.styles.NotificationError, "[ERR]"
		case NotificationWarning:
			style, prefix = m.styles.NotificationWarning, "[WARN]"
		case NotificationInfo:
			style, prefix = m.styles.NotificationInfo, "[INFO]"
		case NotificationLoading:
			style, prefix = m.styles.NotificationInfo, m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := padLines(strings.Split(mainView, "\n"), m.height)

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	const startY = 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	var lines []string

	lines = append(lines, m.styles.Title.Render("Keyboard Shortcuts"), "")

	lines = append(lines, m.styles.Highlight.Render("Navigation"),
		"  1-4        Switch tabs",
		"  Tab        Next tab",
		"  Shift+Tab  Previous tab",
		"")

	lines = append(lines, m.styles.Highlight.Render("Actions"),
		"  r          Refresh",
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
		"")

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(fmt.Sprintf("%s Tab", m.tabNames[m.activeTab])))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not available."),
	)
	return m.styles.Content.Render(content)
}
