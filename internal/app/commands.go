package app

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

const (
	// expiryInterval is how often stale toasts are swept.
	expiryInterval = 2 * time.Second

	// Toast lifetimes.
	DefaultNotificationDuration = 5 * time.Second
	QuickNotificationDuration   = 3 * time.Second
	LongNotificationDuration    = 10 * time.Second

	// QueryTimeout bounds every store query issued from the UI.
	QueryTimeout = 10 * time.Second

	fetchTimeout = 45 * time.Second
)

func expiryTickCmd() tea.Cmd {
	return tea.Tick(expiryInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// loadInitialData loads the cached reading and the bucket statistics.
func loadInitialData(mgr *services.Manager) tea.Cmd {
	return tea.Batch(
		loadUsageCmd(mgr),
		loadBucketStatsCmd(mgr),
	)
}

// loadUsageCmd returns the poller's latest reading. Before the first fetch
// completes it yields nothing; the reading then arrives as a service event.
func loadUsageCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		data, ok := mgr.CurrentUsage()
		if !ok {
			return nil
		}
		return UsageLoadedMsg{Data: data}
	}
}

// refreshUsageCmd asks the poller for a fresh reading.
func refreshUsageCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return UsageLoadedMsg{Data: mgr.FetchUsage(ctx)}
	}
}

// loadBucketStatsCmd loads statistics over the configured lookback. In
// degraded mode it reports nothing rather than an error.
func loadBucketStatsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		if !mgr.StorageEnabled() {
			return BucketStatsLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
		defer cancel()
		stats, err := mgr.AllBucketStats(ctx, mgr.Config().StatsDays)
		return BucketStatsLoadedMsg{Stats: stats, Err: err}
	}
}

// subscribeToServicesCmd subscribes immediately so no event published after
// Init is missed.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

func copyToClipboardCmd(text, label string) tea.Cmd {
	return func() tea.Msg {
		return ClipboardResultMsg{Label: label, Error: copyToClipboard(text)}
	}
}

// notify builds a toast command. The duration depends on the severity:
// errors linger, info toasts are brief.
func notify(t NotificationType, message string) tea.Cmd {
	d := DefaultNotificationDuration
	switch t {
	case NotificationError:
		d = LongNotificationDuration
	case NotificationInfo:
		d = QuickNotificationDuration
	}
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}
