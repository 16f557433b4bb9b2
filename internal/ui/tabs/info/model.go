// Package info provides the info tab: paths, gateway details and settings.
package info

import (
	"context"
	"net"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/config"
	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

// Source is the slice of the service manager the info tab reads from.
type Source interface {
	Config() *config.Config
	Secret() string
	GatewayAddr() net.Addr
	StorageEnabled() bool
	SnapshotCount(ctx context.Context) (int64, error)
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// keyMap defines the key bindings specific to the info tab.
type keyMap struct {
	CopySecret    key.Binding
	Notifications key.Binding
	Refresh       key.Binding
	Up            key.Binding
	Down          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		CopySecret: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy secret"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "toggle notifications"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

type infoLoadedMsg struct {
	err           error
	snapshots     int64
	notifications bool
}

type notificationsSavedMsg struct {
	err     error
	enabled bool
}

// Model represents the info tab state.
type Model struct {
	state    *app.State
	source   Source
	keys     keyMap
	viewport viewport.Model
	errorMsg string
	width    int
	height   int

	snapshots     int64
	notifications bool
	loaded        bool
}

// New creates a new info model.
func New(state *app.State, src Source) *Model {
	m := &Model{
		state:    state,
		source:   src,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
	if cfg := m.config(); cfg != nil {
		m.notifications = cfg.Notifications
	}
	return m
}

// Init initializes the info tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) config() *config.Config {
	if m.source == nil {
		return nil
	}
	return m.source.Config()
}

func (m *Model) storageEnabled() bool {
	return m.source != nil && m.source.StorageEnabled()
}

// loadCmd reads the snapshot count and the effective notification setting.
func (m *Model) loadCmd() tea.Cmd {
	if !m.storageEnabled() {
		return nil
	}
	src := m.source
	fallback := m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()

		msg := infoLoadedMsg{notifications: fallback}
		if msg.snapshots, msg.err = src.SnapshotCount(ctx); msg.err != nil {
			return msg
		}
		v, ok, err := src.Setting(ctx, services.SettingNotifications)
		if err != nil {
			msg.err = err
			return msg
		}
		if ok {
			if b, err := strconv.ParseBool(v); err == nil {
				msg.notifications = b
			}
		}
		return msg
	}
}

func (m *Model) toggleNotificationsCmd() tea.Cmd {
	if !m.storageEnabled() {
		return func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationWarning,
				Message:  "Settings cannot be saved: storage is disabled",
				Duration: app.DefaultNotificationDuration,
			}
		}
	}
	src := m.source
	enabled := !m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()
		err := src.SetSetting(ctx, services.SettingNotifications, strconv.FormatBool(enabled))
		return notificationsSavedMsg{enabled: enabled, err: err}
	}
}

// Update handles messages for the info tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.TabSwitchMsg:
		if msg.Tab == app.TabInfo {
			return m, m.loadCmd()
		}

	case infoLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.errorMsg = msg.err.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.snapshots = msg.snapshots
		m.notifications = msg.notifications

	case notificationsSavedMsg:
		return m, m.handleNotificationsSaved(msg)

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleNotificationsSaved(msg notificationsSavedMsg) tea.Cmd {
	note := app.AddNotificationMsg{Duration: app.QuickNotificationDuration}
	if msg.err != nil {
		note.Type = app.NotificationError
		note.Message = "Failed to save setting: " + msg.err.Error()
		note.Duration = app.LongNotificationDuration
	} else {
		m.notifications = msg.enabled
		note.Type = app.NotificationSuccess
		note.Message = "Desktop notifications " + onOff(msg.enabled)
	}
	return func() tea.Msg { return note }
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.CopySecret):
		if m.source == nil || m.source.Secret() == "" {
			return nil
		}
		secret := m.source.Secret()
		return func() tea.Msg {
			return app.CopyToClipboardMsg{Text: secret, Label: "gateway secret"}
		}

	case key.Matches(msg, m.keys.Notifications):
		return m.toggleNotificationsCmd()

	case key.Matches(msg, m.keys.Refresh):
		return m.loadCmd()

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// SetSize sets the available size for the info tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.CopySecret, m.keys.Notifications}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.CopySecret, m.keys.Notifications},
		{m.keys.Refresh},
	}
}
