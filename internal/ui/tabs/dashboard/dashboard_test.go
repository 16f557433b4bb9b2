package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, data *models.UsageData) (*Model, *app.State) {
	t.Helper()
	state := app.NewState()
	if data != nil {
		state.SetUsage(*data)
		state.SetLoading(app.ResourceInitial, false)
	}
	m := New(state)
	m.now = func() time.Time { return fixedNow }
	m.SetSize(100, 40)
	return m, state
}

func sampleUsage() models.UsageData {
	reset := fixedNow.Add(2*time.Hour + 5*time.Minute)
	return models.UsageData{
		FetchedAt: fixedNow,
		Buckets: []models.UsageBucket{
			{Label: "per 5 hours", Utilization: 42, ResetsAt: &reset},
			{Label: "Opus", Utilization: 91},
		},
	}
}

func TestNew(t *testing.T) {
	m := New(app.NewState())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_View_Loading(t *testing.T) {
	m, _ := newTestModel(t, nil)

	view := m.View()
	if !strings.Contains(view, "per 5 hours") || !strings.Contains(view, "per 7 days") {
		t.Error("loading view should show placeholder bars")
	}
}

func TestModel_View_Buckets(t *testing.T) {
	data := sampleUsage()
	m, state := newTestModel(t, &data)
	state.SetBucketStats([]models.BucketStats{
		{Label: "Opus", Trend: models.TrendUp, Avg: 60, Max: 95, Min: 10, TimeAbove80: 25, SampleCount: 12},
	})

	view := m.View()
	for _, want := range []string{"per 5 hours", "42%", "Opus", "91%", "2h 05m", "↑", "of 12 samples"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestModel_View_Unavailable(t *testing.T) {
	data := sampleUsage()
	m, state := newTestModel(t, &data)
	state.SetUsage(models.UsageData{Error: "API error: 429 Too Many Requests"})

	view := m.View()
	if !strings.Contains(view, "usage data unavailable: API error: 429") {
		t.Error("view should surface the fetch error")
	}
	if !strings.Contains(view, "Opus") {
		t.Error("previous buckets should stay visible")
	}
}

func TestModel_View_Empty(t *testing.T) {
	m, _ := newTestModel(t, &models.UsageData{FetchedAt: fixedNow})
	if !strings.Contains(m.View(), "No quota buckets reported") {
		t.Error("an empty reading should say so")
	}
}

func TestModel_Animation(t *testing.T) {
	data := sampleUsage()
	m, _ := newTestModel(t, &data)

	m.Update(app.UsageLoadedMsg{Data: data})
	anim, ok := m.animations["per 5 hours"]
	if !ok {
		t.Fatal("a loaded reading should start an animation")
	}
	if anim.TargetPercent != 42 || anim.CurrentPercent != 0 {
		t.Errorf("unexpected animation %+v", anim)
	}

	m.Update(animationTickMsg(fixedNow.Add(750 * time.Millisecond)))
	if anim.CurrentPercent <= 0 || anim.CurrentPercent >= 42 {
		t.Errorf("halfway through, percent = %v", anim.CurrentPercent)
	}

	_, cmd := m.Update(animationTickMsg(fixedNow.Add(2 * time.Second)))
	if anim.CurrentPercent != 42 {
		t.Errorf("animation should settle at the target, got %v", anim.CurrentPercent)
	}
	if cmd != nil {
		t.Error("a settled animation should stop ticking")
	}
}

func TestModel_KeyBindings(t *testing.T) {
	data := sampleUsage()
	m, _ := newTestModel(t, &data)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex = %d, want 1", m.selectedIndex)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 0 {
		t.Errorf("selection should wrap, got %d", m.selectedIndex)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex = %d, want 1", m.selectedIndex)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState())
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}

func TestWindowPeriod(t *testing.T) {
	if windowPeriod("per 5 hours") != 5*time.Hour {
		t.Error("five hour bucket should use a five hour window")
	}
	if windowPeriod("Sonnet") != 7*24*time.Hour {
		t.Error("other buckets should use a weekly window")
	}
}
