// Package tokens provides the tokens tab: reported token usage with
// per-host, per-project and per-session breakdowns.
package tokens

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// SettingRange persists the selected range between runs.
const SettingRange = "ui.tokens_range"

// Source is the slice of the service manager the tokens tab reads from.
type Source interface {
	StorageEnabled() bool
	TokenHistory(ctx context.Context, r models.HistoryRange, f models.TokenFilter) ([]models.TokenDataPoint, error)
	TokenStats(ctx context.Context, days int, f models.TokenFilter) (models.TokenStats, error)
	TokenHostnames(ctx context.Context) ([]string, error)
	HostBreakdown(ctx context.Context, days int) ([]models.HostBreakdown, error)
	ProjectBreakdown(ctx context.Context, days int) ([]models.ProjectBreakdown, error)
	SessionBreakdown(ctx context.Context, days int, hostname string) ([]models.SessionBreakdown, error)
	DeleteHostData(ctx context.Context, hostname string) (int64, error)
	DeleteSessionData(ctx context.Context, sessionID string) (int64, error)
	DeleteProjectData(ctx context.Context, cwd string) (int64, error)
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// ViewMode selects which breakdown table is shown.
type ViewMode int

const (
	ViewHosts ViewMode = iota
	ViewProjects
	ViewSessions
)

// String returns the breakdown name.
func (v ViewMode) String() string {
	switch v {
	case ViewProjects:
		return "Projects"
	case ViewSessions:
		return "Sessions"
	default:
		return "Hosts"
	}
}

func (v ViewMode) next() ViewMode { return (v + 1) % 3 }

type keyMap struct {
	ToggleRange key.Binding
	ToggleView  key.Binding
	CycleHost   key.Binding
	Select      key.Binding
	ClearFilter key.Binding
	Delete      key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
	Up          key.Binding
	Down        key.Binding
	Refresh     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle time range")),
		ToggleView:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "hosts/projects/sessions")),
		CycleHost:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle host filter")),
		Select:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "filter by row")),
		ClearFilter: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete row data")),
		Confirm:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// filters restricts the charts and totals. Empty fields are unset.
type filters struct {
	host    string
	project string
	session string
}

func (f filters) history() models.TokenFilter {
	return models.HistoryFilter(f.host, f.session, f.project)
}

func (f filters) stats() models.TokenFilter {
	return models.StatsFilter(f.host, f.project)
}

func (f filters) active() bool {
	return f.host != "" || f.project != "" || f.session != ""
}

// row is one line of the active breakdown table.
type row struct {
	label string
	host  string
	// value is what a filter or delete on this row targets.
	value string
	total int64
	turns int64
	extra string
}

type tokensLoadedMsg struct {
	err       error
	history   []models.TokenDataPoint
	hostnames []string
	rows      []row
	stats     models.TokenStats
	rng       models.HistoryRange
	mode      ViewMode
	restored  bool
}

type tokensDeletedMsg struct {
	err    error
	target string
	rows   int64
}

// pendingDelete is a delete waiting for confirmation.
type pendingDelete struct {
	mode  ViewMode
	value string
	label string
}

// Model represents the tokens tab state.
type Model struct {
	state     *app.State
	source    Source
	confirm   *pendingDelete
	keys      keyMap
	viewport  viewport.Model
	history   []models.TokenDataPoint
	hostnames []string
	rows      []row
	errorMsg  string
	filter    filters
	stats     models.TokenStats
	timeRange models.HistoryRange
	mode      ViewMode
	selected  int
	width     int
	height    int

	loading         bool
	loaded          bool
	settingRestored bool
}

// New creates a new tokens model.
func New(state *app.State, src Source) *Model {
	return &Model{
		state:     state,
		source:    src,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.Range24Hours,
	}
}

// Init initializes the tab. Data is loaded when the tab is shown.
func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) storageEnabled() bool {
	return m.source != nil && m.source.StorageEnabled()
}

func (m *Model) reload() tea.Cmd {
	m.loading = true
	return m.loadCmd()
}

// loadCmd reads totals, history and the active breakdown in one pass.
func (m *Model) loadCmd() tea.Cmd {
	src := m.source
	rng := m.timeRange
	mode := m.mode
	f := m.filter
	restore := !m.settingRestored
	enabled := m.storageEnabled()

	return func() tea.Msg {
		msg := tokensLoadedMsg{rng: rng, mode: mode, restored: restore}
		if !enabled {
			return msg
		}

		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()

		if restore {
			if v, ok, err := src.Setting(ctx, SettingRange); err != nil {
				logger.Warn("failed to read tokens range setting", "error", err)
			} else if ok {
				msg.rng = models.ParseHistoryRange(v)
			}
		}
		days := msg.rng.Days()

		if msg.stats, msg.err = src.TokenStats(ctx, days, f.stats()); msg.err != nil {
			return msg
		}
		if msg.history, msg.err = src.TokenHistory(ctx, msg.rng, f.history()); msg.err != nil {
			return msg
		}
		if msg.hostnames, msg.err = src.TokenHostnames(ctx); msg.err != nil {
			return msg
		}
		msg.rows, msg.err = loadRows(ctx, src, mode, days, f.host)
		return msg
	}
}

func loadRows(ctx context.Context, src Source, mode ViewMode, days int, host string) ([]row, error) {
	var rows []row
	switch mode {
	case ViewProjects:
		projects, err := src.ProjectBreakdown(ctx, days)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			if host != "" && p.Hostname != host {
				continue
			}
			rows = append(rows, row{
				label: p.Project, host: p.Hostname, value: p.Project,
				total: p.TotalTokens, turns: p.TurnCount,
				extra: fmt.Sprintf("%d sessions", p.SessionCount),
			})
		}
	case ViewSessions:
		sessions, err := src.SessionBreakdown(ctx, days, host)
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			project := "-"
			if s.Project != nil {
				project = *s.Project
			}
			rows = append(rows, row{
				label: s.SessionID, host: s.Hostname, value: s.SessionID,
				total: s.TotalTokens, turns: s.TurnCount, extra: project,
			})
		}
	default:
		hosts, err := src.HostBreakdown(ctx, days)
		if err != nil {
			return nil, err
		}
		for _, h := range hosts {
			rows = append(rows, row{
				label: h.Hostname, host: h.Hostname, value: h.Hostname,
				total: h.TotalTokens, turns: h.TurnCount,
				extra: h.LastActive.Format("Jan 2 15:04"),
			})
		}
	}
	return rows, nil
}

func (m *Model) saveRangeCmd(r models.HistoryRange) tea.Cmd {
	if !m.storageEnabled() {
		return nil
	}
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()
		if err := src.SetSetting(ctx, SettingRange, r.String()); err != nil {
			logger.Warn("failed to save tokens range", "error", err)
		}
		return nil
	}
}

func (m *Model) deleteCmd(p pendingDelete) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()

		var (
			n   int64
			err error
		)
		switch p.mode {
		case ViewProjects:
			n, err = src.DeleteProjectData(ctx, p.value)
		case ViewSessions:
			n, err = src.DeleteSessionData(ctx, p.value)
		default:
			n, err = src.DeleteHostData(ctx, p.value)
		}
		return tokensDeletedMsg{target: p.label, rows: n, err: err}
	}
}

// Update handles messages for the tokens tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tokensLoadedMsg:
		return m, m.handleLoaded(msg)

	case tokensDeletedMsg:
		return m, m.handleDeleted(msg)

	case app.TabSwitchMsg:
		if msg.Tab == app.TabTokens {
			return m, m.reload()
		}

	case app.TokensReportedMsg:
		if m.loaded && !m.loading {
			return m, m.reload()
		}

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleLoaded(msg tokensLoadedMsg) tea.Cmd {
	m.loading = false
	m.loaded = true
	m.timeRange = msg.rng
	if msg.restored {
		m.settingRestored = true
	}

	if msg.err != nil {
		m.errorMsg = msg.err.Error()
		return notifyError(fmt.Sprintf("Tokens error: %s", msg.err))
	}

	m.errorMsg = ""
	m.stats = msg.stats
	m.history = msg.history
	m.hostnames = msg.hostnames
	if msg.mode == m.mode {
		m.rows = msg.rows
	}
	m.selected = min(m.selected, max(0, len(m.rows)-1))
	return nil
}

func (m *Model) handleDeleted(msg tokensDeletedMsg) tea.Cmd {
	if msg.err != nil {
		return notifyError(fmt.Sprintf("Delete failed: %s", msg.err))
	}
	notify := func() tea.Msg {
		return app.AddNotificationMsg{
			Type:     app.NotificationSuccess,
			Message:  fmt.Sprintf("Deleted %d rows for %s", msg.rows, msg.target),
			Duration: app.DefaultNotificationDuration,
		}
	}
	return tea.Batch(notify, m.reload())
}

func notifyError(message string) tea.Cmd {
	return func() tea.Msg {
		return app.AddNotificationMsg{
			Type:     app.NotificationError,
			Message:  message,
			Duration: app.LongNotificationDuration,
		}
	}
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		m.settingRestored = true
		return tea.Batch(m.saveRangeCmd(m.timeRange), m.reload())

	case key.Matches(msg, m.keys.ToggleView):
		m.mode = m.mode.next()
		m.selected = 0
		m.rows = nil
		return m.reload()

	case key.Matches(msg, m.keys.CycleHost):
		m.filter = filters{host: m.nextHost()}
		m.selected = 0
		return m.reload()

	case key.Matches(msg, m.keys.ClearFilter):
		if !m.filter.active() {
			return nil
		}
		m.filter = filters{}
		return m.reload()

	case key.Matches(msg, m.keys.Select):
		if r, ok := m.selectedRow(); ok {
			m.applyRowFilter(r)
			return m.reload()
		}

	case key.Matches(msg, m.keys.Delete):
		if r, ok := m.selectedRow(); ok && m.storageEnabled() {
			m.confirm = &pendingDelete{mode: m.mode, value: r.value, label: r.label}
		}

	case key.Matches(msg, m.keys.Down):
		if len(m.rows) > 0 {
			m.selected = (m.selected + 1) % len(m.rows)
		}

	case key.Matches(msg, m.keys.Up):
		if len(m.rows) > 0 {
			m.selected = (m.selected - 1 + len(m.rows)) % len(m.rows)
		}

	case key.Matches(msg, m.keys.Refresh):
		return m.reload()

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		p := *m.confirm
		m.confirm = nil
		m.selected = 0
		if p.mode == ViewHosts && m.filter.host == p.value {
			m.filter = filters{}
		}
		return m.deleteCmd(p)
	case key.Matches(msg, m.keys.Cancel):
		m.confirm = nil
	}
	return nil
}

func (m *Model) selectedRow() (row, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.selected], true
}

func (m *Model) applyRowFilter(r row) {
	switch m.mode {
	case ViewProjects:
		m.filter = filters{host: r.host, project: r.value}
	case ViewSessions:
		m.filter = filters{host: r.host, session: r.value}
	default:
		m.filter = filters{host: r.value}
	}
}

// nextHost cycles "" → each hostname → "".
func (m *Model) nextHost() string {
	if len(m.hostnames) == 0 {
		return ""
	}
	if m.filter.host == "" {
		return m.hostnames[0]
	}
	for i, h := range m.hostnames {
		if h == m.filter.host {
			if i+1 < len(m.hostnames) {
				return m.hostnames[i+1]
			}
			return ""
		}
	}
	return ""
}

// SetSize sets the available size for the tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.ToggleView,
		m.keys.CycleHost,
		m.keys.Select,
		m.keys.ClearFilter,
		m.keys.Delete,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.ToggleView, m.keys.Refresh},
		{m.keys.CycleHost, m.keys.Select, m.keys.ClearFilter},
		{m.keys.Up, m.keys.Down, m.keys.Delete},
	}
}
