package app

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// NotificationType is the severity of a toast.
type NotificationType int

const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
	// NotificationLoading renders with the spinner instead of a prefix.
	NotificationLoading
)

var notificationNames = [...]string{"success", "error", "warning", "info", "loading"}

func (n NotificationType) String() string {
	if n < 0 || int(n) >= len(notificationNames) {
		return "unknown"
	}
	return notificationNames[n]
}

// LoadingNotificationID identifies the single loading toast.
const LoadingNotificationID = "loading"

const maxNotifications = 10

// Notification is a toast shown in the top-right corner. A zero Duration
// never expires.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

func (n *Notification) expiredAt(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.CreatedAt) > n.Duration
}

// Resource names used with SetLoading.
const (
	ResourceInitial = "initial"
	ResourceUsage   = "usage"
	ResourceStats   = "stats"
)

// LoadingState records which resources are in flight.
type LoadingState struct {
	Initial bool
	Usage   bool
	Stats   bool
}

func (l *LoadingState) flag(resource string) *bool {
	switch resource {
	case ResourceInitial:
		return &l.Initial
	case ResourceUsage:
		return &l.Usage
	case ResourceStats:
		return &l.Stats
	}
	return nil
}

// State is shared between the root model and the tabs. The tabs only read
// it; the root model applies every service event to it.
type State struct {
	LastUpdated time.Time
	lastReport  *models.TokenReport
	usage       models.UsageData
	bucketStats []models.BucketStats

	notifications []Notification
	Loading       LoadingState

	mu       sync.RWMutex
	hasUsage bool
}

// NewState returns an empty state in the initial loading phase.
func NewState() *State {
	return &State{Loading: LoadingState{Initial: true}}
}

// SetLoading marks resource as loading or done. Unknown names are ignored.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.Loading.flag(resource); f != nil {
		*f = loading
	}
}

func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Usage || s.Loading.Stats
}

// IsInitialLoading reports whether no usage reading has arrived yet.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// SetUsage stores the latest reading. A failed fetch keeps the previous
// buckets visible so the tab can show them as stale next to the error.
func (s *State) SetUsage(data models.UsageData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !data.OK() && s.hasUsage {
		s.usage.Error = data.Error
		s.usage.FetchedAt = data.FetchedAt
	} else {
		s.usage = data
	}
	s.hasUsage = true
	s.LastUpdated = time.Now()
}

// GetUsage returns the latest reading and whether one has arrived.
func (s *State) GetUsage() (models.UsageData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.usage
	data.Buckets = append([]models.UsageBucket(nil), s.usage.Buckets...)
	return data, s.hasUsage
}

// BucketLabels returns the labels of the latest reading in API order.
func (s *State) BucketLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.usage.Buckets))
	for _, b := range s.usage.Buckets {
		labels = append(labels, b.Label)
	}
	return labels
}

// SetBucketStats replaces the per-bucket statistics.
func (s *State) SetBucketStats(stats []models.BucketStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketStats = stats
}

// GetBucketStats returns the statistics for one bucket.
func (s *State) GetBucketStats(label string) (models.BucketStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.bucketStats {
		if st.Label == label {
			return st, true
		}
	}
	return models.BucketStats{}, false
}

// SetLastReport records the most recent report accepted by the gateway.
func (s *State) SetLastReport(r models.TokenReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &r
}

// GetLastReport returns the most recent accepted report, if any.
func (s *State) GetLastReport() *models.TokenReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return nil
	}
	r := *s.lastReport
	return &r
}

// AddNotification queues a toast and returns its ID. Only the newest
// maxNotifications are kept.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})
	if extra := len(s.notifications) - maxNotifications; extra > 0 {
		s.notifications = slices.Delete(s.notifications, 0, extra)
	}
	return id
}

func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.ID == id
	})
}

// ClearExpiredNotifications drops toasts whose duration has elapsed.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.expiredAt(now)
	})
}

// GetNotifications returns the unexpired toasts, oldest first.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.expiredAt(now) {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows message in the loading toast, creating it
// if needed.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.IndexFunc(s.notifications, func(n Notification) bool {
		return n.ID == LoadingNotificationID
	}); i >= 0 {
		s.notifications[i].Message = message
		return
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate is zero until the first reading.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
