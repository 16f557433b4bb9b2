package app

import (
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

// TickMsg drives the periodic sweep of expired toasts.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg is emitted before a refresh begins so tabs can show a
// spinner.
type StartLoadingMsg struct {
	Resource string
}

// UsageLoadedMsg carries a usage reading, either the cached one at startup
// or the result of a manual refresh.
type UsageLoadedMsg struct {
	Data models.UsageData
}

// BucketStatsLoadedMsg carries per-bucket statistics for the dashboard.
type BucketStatsLoadedMsg struct {
	Err   error
	Stats []models.BucketStats
}

// TokensReportedMsg is forwarded to the active tab when the gateway stores
// a report.
type TokensReportedMsg struct {
	Report models.TokenReport
}

// RefreshMsg requests a refresh of ResourceUsage or ResourceStats.
type RefreshMsg struct {
	Resource string
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps an event published by the manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg hands the subscription channel to the model.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// TabSwitchMsg requests switching to a specific tab. The newly active tab
// receives it too, so it can reload its data.
type TabSwitchMsg struct {
	Tab TabID
}

// CopyToClipboardMsg asks the model to copy Text; Label names it in the toast.
type CopyToClipboardMsg struct {
	Text  string
	Label string
}

// ClipboardResultMsg reports a finished copy.
type ClipboardResultMsg struct {
	Error error
	Label string
}
