package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

type fakeTab struct {
	msgs []tea.Msg
	view string
	w, h int
}

func (f *fakeTab) Init() tea.Cmd { return nil }

func (f *fakeTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	f.msgs = append(f.msgs, msg)
	return f, nil
}

func (f *fakeTab) View() string              { return f.view }
func (f *fakeTab) SetSize(w, h int)          { f.w, f.h = w, h }
func (f *fakeTab) ShortHelp() []key.Binding  { return nil }
func (f *fakeTab) FullHelp() [][]key.Binding { return nil }

func (f *fakeTab) received(target tea.Msg) bool {
	for _, m := range f.msgs {
		if m == target {
			return true
		}
	}
	return false
}

func newTestModel(t *testing.T) (*Model, []*fakeTab) {
	t.Helper()
	m := NewModel(nil)
	fakes := make([]*fakeTab, tabCount)
	tabs := make([]Tab, tabCount)
	for i := range fakes {
		fakes[i] = &fakeTab{view: TabID(i).String() + " content"}
		tabs[i] = fakes[i]
	}
	m.SetTabs(tabs)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, fakes
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model.state == nil {
		t.Error("State should be initialized")
	}
	if model.activeTab != TabUsage {
		t.Error("Default tab should be Usage")
	}
	if len(model.tabs) != tabCount || len(model.tabNames) != tabCount {
		t.Errorf("expected %d tab slots, got %d", tabCount, len(model.tabs))
	}
	if model.tabNames[TabTokens] != "Tokens" {
		t.Errorf("tab name = %q", model.tabNames[TabTokens])
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil)
	if model.Init() == nil {
		t.Error("Init returned nil command")
	}
	if len(model.state.GetNotifications()) != 1 {
		t.Error("Init should show the loading notification")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	m, fakes := newTestModel(t)

	if !m.IsReady() || m.width != 120 || m.height != 40 {
		t.Errorf("unexpected size %dx%d ready=%v", m.width, m.height, m.ready)
	}
	if fakes[TabTokens].w != 120 || fakes[TabTokens].h != 37 {
		t.Errorf("tab size = %dx%d", fakes[TabTokens].w, fakes[TabTokens].h)
	}
}

func TestModel_TabKeys(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want TabID
	}{
		{runeKey('2'), TabHistory},
		{runeKey('3'), TabTokens},
		{runeKey('4'), TabInfo},
		{tea.KeyMsg{Type: tea.KeyTab}, TabHistory},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			m, fakes := newTestModel(t)

			cmd := m.handleKeyMsg(tt.key)
			if cmd == nil {
				t.Fatal("tab key should return a command")
			}
			msg := cmd()
			switchMsg, ok := msg.(TabSwitchMsg)
			if !ok || switchMsg.Tab != tt.want {
				t.Fatalf("got %#v, want switch to %v", msg, tt.want)
			}

			m.Update(msg)
			if m.GetActiveTab() != tt.want {
				t.Errorf("ActiveTab = %v, want %v", m.GetActiveTab(), tt.want)
			}
			if !fakes[tt.want].received(msg) {
				t.Error("the newly active tab should receive the switch message")
			}
		})
	}
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := m.handleKeyMsg(runeKey('q'))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_RefreshKey(t *testing.T) {
	m, _ := newTestModel(t)

	cmd := m.handleKeyMsg(runeKey('r'))
	if cmd == nil {
		t.Fatal("r on the usage tab should refresh")
	}
	if msg, ok := cmd().(RefreshMsg); !ok || msg.Resource != ResourceUsage {
		t.Errorf("unexpected refresh message %#v", msg)
	}

	m.activeTab = TabTokens
	if m.handleKeyMsg(runeKey('r')) != nil {
		t.Error("other tabs handle r themselves")
	}
}

func TestModel_HelpSwallowsKeys(t *testing.T) {
	m, fakes := newTestModel(t)

	m.Update(runeKey('?'))
	if !m.showHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("help overlay should be rendered")
	}

	before := len(fakes[TabUsage].msgs)
	m.Update(runeKey('3'))
	if len(fakes[TabUsage].msgs) != before {
		t.Error("keys should not reach the tab while help is open")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close help")
	}
}

func TestModel_UsageLoaded(t *testing.T) {
	m, _ := newTestModel(t)
	m.Init()

	data := models.UsageData{Buckets: []models.UsageBucket{{Label: "per 5 hours", Utilization: 50}}}
	m.Update(UsageLoadedMsg{Data: data})

	if m.state.IsInitialLoading() {
		t.Error("initial loading should end with the first reading")
	}
	if len(m.state.GetNotifications()) != 0 {
		t.Error("loading notification should be cleared")
	}
	got, ok := m.state.GetUsage()
	if !ok || got.Buckets[0].Utilization != 50 {
		t.Errorf("state usage = %+v", got)
	}
}

func TestModel_BucketStatsLoaded(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(BucketStatsLoadedMsg{Stats: []models.BucketStats{{Label: "Opus", Max: 70}}})
	if st, ok := m.state.GetBucketStats("Opus"); !ok || st.Max != 70 {
		t.Errorf("bucket stats = %+v, %v", st, ok)
	}

	_, cmd := m.Update(BucketStatsLoadedMsg{Err: errors.New("boom")})
	if cmd == nil {
		t.Error("a stats error should produce a notification")
	}
	if _, ok := m.state.GetBucketStats("Opus"); !ok {
		t.Error("a failed reload should keep the previous stats")
	}
}

func TestModel_HandleServiceEvent(t *testing.T) {
	m, _ := newTestModel(t)

	report := models.TokenReport{SessionID: "s1", Hostname: "laptop", OutputTokens: 9}
	cmds := m.handleServiceEvent(services.TokensUpdatedEvent{Report: report})
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	msg, ok := cmds[0]().(TokensReportedMsg)
	if !ok || msg.Report.SessionID != "s1" {
		t.Errorf("unexpected message %#v", msg)
	}
	if r := m.state.GetLastReport(); r == nil || r.OutputTokens != 9 {
		t.Errorf("last report = %+v", r)
	}

	cmds = m.handleServiceEvent(services.UsageUpdatedEvent{Data: models.UsageData{Error: "API error: 500"}})
	if loaded, ok := cmds[0]().(UsageLoadedMsg); !ok || loaded.Data.Error != "API error: 500" {
		t.Errorf("unexpected message %#v", loaded)
	}

	cmds = m.handleServiceEvent(services.ErrorEvent{Service: "usage", Error: errors.New("down")})
	add, ok := cmds[0]().(AddNotificationMsg)
	if !ok || add.Type != NotificationError || add.Message != "[usage] down" {
		t.Errorf("unexpected notification %#v", add)
	}

	cmds = m.handleServiceEvent(services.CredentialsChangedEvent{})
	if add, ok := cmds[0]().(AddNotificationMsg); !ok || add.Type != NotificationInfo {
		t.Errorf("unexpected notification %#v", add)
	}
}

func TestModel_ClipboardResult(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(ClipboardResultMsg{Label: "secret"})
	if cmd == nil {
		t.Fatal("expected a notification command")
	}
}

func TestModel_View(t *testing.T) {
	m, _ := newTestModel(t)

	view := m.View()
	for _, want := range []string{"Usage", "History", "Tokens", "Info", "Usage content", "? help"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}

	m.state.AddNotification(NotificationSuccess, "Saved", 0)
	if !strings.Contains(m.View(), "Saved") {
		t.Error("toast should be rendered")
	}
}

func TestModel_View_NotReady(t *testing.T) {
	m := NewModel(nil)
	if !strings.Contains(m.View(), "Loading") {
		t.Error("a model without a window size should show loading")
	}
}

func TestTabID_String(t *testing.T) {
	if TabID(42).String() != "Unknown" {
		t.Error("unknown tab id should stringify as Unknown")
	}
}
