package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-dashboard/internal/ui/styles"
)

// slowAfter is when the spinner starts showing how long it has been waiting.
const slowAfter = 3 * time.Second

// LoadingSpinner is a labelled spinner for a request in flight.
type LoadingSpinner struct {
	started time.Time
	label   string
	model   spinner.Model
}

// NewSpinner creates a spinner whose wait starts now.
func NewSpinner(label string) LoadingSpinner {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Primary)),
	)
	return LoadingSpinner{model: s, label: label, started: time.Now()}
}

// Init starts the animation.
func (l LoadingSpinner) Init() tea.Cmd {
	return l.model.Tick
}

// Update advances the animation on its own tick messages.
func (l LoadingSpinner) Update(msg tea.Msg) (LoadingSpinner, tea.Cmd) {
	var cmd tea.Cmd
	l.model, cmd = l.model.Update(msg)
	return l, cmd
}

// View renders the spinner, its label and, once the wait is slow, the
// elapsed time.
func (l LoadingSpinner) View() string {
	return l.view(time.Now())
}

func (l LoadingSpinner) view(now time.Time) string {
	text := l.label
	if waited := now.Sub(l.started); waited >= slowAfter {
		text += " " + waited.Truncate(time.Second).String()
	}
	return l.model.View() + " " + lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(text)
}

// RenderSpinnerCentered renders a spinner centered in a given width and height.
func RenderSpinnerCentered(s LoadingSpinner, width, height int) string {
	return styles.CenterBoth(s.View(), width, height)
}
