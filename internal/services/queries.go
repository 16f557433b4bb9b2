package services

import (
	"context"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/db"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// UsageHistory returns the utilization series of one bucket.
func (m *Manager) UsageHistory(ctx context.Context, bucket string, r models.HistoryRange) ([]models.DataPoint, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.UsageHistory(ctx, bucket, r)
}

// UsageStats summarizes one bucket over the last days.
func (m *Manager) UsageStats(ctx context.Context, bucket string, days int) (models.BucketStats, error) {
	if m.store == nil {
		return models.BucketStats{}, ErrStorageDisabled
	}
	return m.store.UsageStats(ctx, bucket, days)
}

// AllBucketStats summarizes every bucket of the latest reading.
func (m *Manager) AllBucketStats(ctx context.Context, days int) ([]models.BucketStats, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	current, _ := m.usage.Latest()
	return m.store.AllBucketStats(ctx, current.Buckets, days)
}

// SnapshotCount returns the number of granular usage rows.
func (m *Manager) SnapshotCount(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, ErrStorageDisabled
	}
	return m.store.SnapshotCount(ctx)
}

// TokenHistory returns the token series for the range and filter.
func (m *Manager) TokenHistory(ctx context.Context, r models.HistoryRange, f models.TokenFilter) ([]models.TokenDataPoint, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.TokenHistory(ctx, r, f)
}

// TokenStats sums token usage over the last days.
func (m *Manager) TokenStats(ctx context.Context, days int, f models.TokenFilter) (models.TokenStats, error) {
	if m.store == nil {
		return models.TokenStats{}, ErrStorageDisabled
	}
	return m.store.TokenStats(ctx, days, f)
}

// TokenHostnames lists every reporting hostname.
func (m *Manager) TokenHostnames(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.TokenHostnames(ctx)
}

// HostBreakdown groups token usage by hostname.
func (m *Manager) HostBreakdown(ctx context.Context, days int) ([]models.HostBreakdown, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.HostBreakdown(ctx, days)
}

// ProjectBreakdown groups token usage by working directory and hostname.
func (m *Manager) ProjectBreakdown(ctx context.Context, days int) ([]models.ProjectBreakdown, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.ProjectBreakdown(ctx, days)
}

// SessionBreakdown groups token usage by session, optionally for one host.
func (m *Manager) SessionBreakdown(ctx context.Context, days int, hostname string) ([]models.SessionBreakdown, error) {
	if m.store == nil {
		return nil, ErrStorageDisabled
	}
	return m.store.SessionBreakdown(ctx, days, hostname)
}

// DeleteHostData removes every token row of a hostname.
func (m *Manager) DeleteHostData(ctx context.Context, hostname string) (int64, error) {
	if m.store == nil {
		return 0, ErrStorageDisabled
	}
	return m.store.DeleteHostData(ctx, hostname)
}

// DeleteSessionData removes the token rows of a session.
func (m *Manager) DeleteSessionData(ctx context.Context, sessionID string) (int64, error) {
	if m.store == nil {
		return 0, ErrStorageDisabled
	}
	return m.store.DeleteSessionData(ctx, sessionID)
}

// DeleteProjectData removes the token rows of a working directory.
func (m *Manager) DeleteProjectData(ctx context.Context, cwd string) (int64, error) {
	if m.store == nil {
		return 0, ErrStorageDisabled
	}
	return m.store.DeleteProjectData(ctx, cwd)
}

// Setting reads a stored setting.
func (m *Manager) Setting(ctx context.Context, key string) (string, bool, error) {
	if m.store == nil {
		return "", false, ErrStorageDisabled
	}
	return m.store.Setting(ctx, key)
}

// SetSetting stores a setting.
func (m *Manager) SetSetting(ctx context.Context, key, value string) error {
	if m.store == nil {
		return ErrStorageDisabled
	}
	return m.store.SetSetting(ctx, key, value)
}

// Compact folds granular rows older than retention into hourly aggregates.
func (m *Manager) Compact(ctx context.Context) (db.CompactionResult, error) {
	if m.store == nil {
		return db.CompactionResult{}, ErrStorageDisabled
	}
	return m.store.CompactAndRetire(ctx, time.Now().Add(-m.cfg.Retention()))
}
