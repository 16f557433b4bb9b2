// Package history provides the history tab: utilization over time for one bucket.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// SettingRange persists the selected range between runs.
const SettingRange = "ui.history_range"

var defaultBuckets = []string{"per 5 hours", "per 7 days"}

// Source is the slice of the service manager the history tab reads from.
type Source interface {
	StorageEnabled() bool
	UsageHistory(ctx context.Context, bucket string, r models.HistoryRange) ([]models.DataPoint, error)
	UsageStats(ctx context.Context, bucket string, days int) (models.BucketStats, error)
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange key.Binding
	NextBucket  key.Binding
	PrevBucket  key.Binding
	Refresh     key.Binding
	Up          key.Binding
	Down        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		NextBucket: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "next bucket"),
		),
		PrevBucket: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "prev bucket"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg carries one bucket's history for one range.
type historyLoadedMsg struct {
	err    error
	bucket string
	points []models.DataPoint
	stats  models.BucketStats
	rng    models.HistoryRange
	// restored is set when the saved range was read as part of this load.
	restored bool
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	source   Source
	keys     keyMap
	viewport viewport.Model
	points   []models.DataPoint
	stats    models.BucketStats
	errorMsg string
	bucket   string
	width    int
	height   int

	timeRange       models.HistoryRange
	loading         bool
	loaded          bool
	settingRestored bool
}

// New creates a new history model.
func New(state *app.State, src Source) *Model {
	return &Model{
		state:     state,
		source:    src,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.Range24Hours,
	}
}

// Init initializes the history tab. Data is loaded when the tab is shown.
func (m *Model) Init() tea.Cmd {
	return nil
}

// buckets lists the labels the user can cycle through.
func (m *Model) buckets() []string {
	if labels := m.state.BucketLabels(); len(labels) > 0 {
		return labels
	}
	return defaultBuckets
}

func (m *Model) currentBucket() string {
	buckets := m.buckets()
	for _, b := range buckets {
		if b == m.bucket {
			return b
		}
	}
	return buckets[0]
}

// loadHistoryCmd reads the bucket's history and statistics. The first load
// also restores the saved range.
func (m *Model) loadHistoryCmd() tea.Cmd {
	src := m.source
	bucket := m.currentBucket()
	rng := m.timeRange
	restore := !m.settingRestored

	return func() tea.Msg {
		if src == nil || !src.StorageEnabled() {
			return historyLoadedMsg{bucket: bucket, rng: rng, restored: restore}
		}

		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()

		if restore {
			if v, ok, err := src.Setting(ctx, SettingRange); err != nil {
				logger.Warn("failed to read history range setting", "error", err)
			} else if ok {
				rng = models.ParseHistoryRange(v)
			}
		}

		points, err := src.UsageHistory(ctx, bucket, rng)
		if err != nil {
			return historyLoadedMsg{bucket: bucket, rng: rng, restored: restore, err: err}
		}
		stats, err := src.UsageStats(ctx, bucket, rng.Days())
		return historyLoadedMsg{bucket: bucket, rng: rng, restored: restore, points: points, stats: stats, err: err}
	}
}

func (m *Model) saveRangeCmd(r models.HistoryRange) tea.Cmd {
	src := m.source
	if src == nil || !src.StorageEnabled() {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), app.QueryTimeout)
		defer cancel()
		if err := src.SetSetting(ctx, SettingRange, r.String()); err != nil {
			logger.Warn("failed to save history range", "error", err)
		}
		return nil
	}
}

func (m *Model) reload() tea.Cmd {
	m.loading = true
	return m.loadHistoryCmd()
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		return m, m.handleLoaded(msg)

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory {
			return m, m.reload()
		}

	case app.UsageLoadedMsg:
		// A new snapshot may have been recorded.
		if m.loaded && !m.loading {
			return m, m.reload()
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleLoaded(msg historyLoadedMsg) tea.Cmd {
	m.loading = false
	m.loaded = true
	m.bucket = msg.bucket
	m.timeRange = msg.rng
	if msg.restored {
		m.settingRestored = true
	}

	if msg.err != nil {
		m.errorMsg = msg.err.Error()
		return func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		}
	}

	m.errorMsg = ""
	m.points = msg.points
	m.stats = msg.stats
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		m.settingRestored = true
		return m, tea.Batch(m.saveRangeCmd(m.timeRange), m.reload())

	case key.Matches(msg, m.keys.NextBucket):
		m.bucket = m.cycleBucket(1)
		return m, m.reload()

	case key.Matches(msg, m.keys.PrevBucket):
		m.bucket = m.cycleBucket(-1)
		return m, m.reload()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.reload()

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

func (m *Model) cycleBucket(delta int) string {
	buckets := m.buckets()
	current := m.currentBucket()
	for i, b := range buckets {
		if b == current {
			return buckets[(i+delta+len(buckets))%len(buckets)]
		}
	}
	return buckets[0]
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// dataSpan returns the first and last timestamps of the loaded points.
func (m *Model) dataSpan() (first, last time.Time) {
	if len(m.points) == 0 {
		return time.Time{}, time.Time{}
	}
	return m.points[0].Timestamp, m.points[len(m.points)-1].Timestamp
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.NextBucket,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.Refresh},
		{m.keys.NextBucket, m.keys.PrevBucket},
		{m.keys.Up, m.keys.Down},
	}
}
