// Package dashboard provides the usage tab: one card per quota bucket.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

const animationDuration = 1.5 // seconds

// keyMap defines the key bindings specific to the usage tab.
type keyMap struct {
	NextBucket key.Binding
	PrevBucket key.Binding
	Refresh    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextBucket: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "next bucket"),
		),
		PrevBucket: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "prev bucket"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// AnimationState tracks a bar easing towards its latest utilization.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the usage tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	now            func() time.Time
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	width          int
	height         int
	selectedIndex  int
	animationFrame int
}

// New creates a new usage tab model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Fetching usage..."),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
		now:        time.Now,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.StartLoadingMsg:
		cmds = append(cmds, animationTickCmd())

	case app.UsageLoadedMsg, app.TabSwitchMsg, app.RefreshMsg:
		m.syncAnimationTargets(m.now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	m.syncAnimationTargets(now)
	animating := m.stepAnimations(now)

	if animating || m.state.AnyLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	count := len(m.state.BucketLabels())

	switch {
	case key.Matches(msg, m.keys.NextBucket):
		if count > 0 {
			m.selectedIndex = (m.selectedIndex + 1) % count
		}
	case key.Matches(msg, m.keys.PrevBucket):
		if count > 0 {
			m.selectedIndex = (m.selectedIndex - 1 + count) % count
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points each bucket's animation at its latest
// utilization and reports whether any bar is still moving.
func (m *Model) syncAnimationTargets(now time.Time) (animating bool) {
	data, ok := m.state.GetUsage()
	if !ok {
		return false
	}

	for _, b := range data.Buckets {
		if m.updateAnimationState(b.Label, b.Utilization, now) {
			animating = true
		}
	}
	return animating
}

func (m *Model) updateAnimationState(label string, target float64, now time.Time) bool {
	state, exists := m.animations[label]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[label] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

// stepAnimations advances every bar and reports whether any is still moving.
func (m *Model) stepAnimations(now time.Time) (animating bool) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := elapsed / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
		animating = true
	}
	return animating
}

// displayPercent is the animated utilization for a bucket, or the raw value
// before its first animation frame.
func (m *Model) displayPercent(label string, utilization float64) float64 {
	if anim, ok := m.animations[label]; ok && anim.TargetPercent == utilization {
		return anim.CurrentPercent
	}
	return utilization
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.NextBucket, m.keys.PrevBucket, m.keys.Refresh}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextBucket, m.keys.PrevBucket},
		{m.keys.Refresh},
	}
}
