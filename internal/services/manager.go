// Package services provides service orchestration for the TUI and the
// headless server.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/claude-usage-dashboard/internal/config"
	"github.com/j-veylop/claude-usage-dashboard/internal/db"
	"github.com/j-veylop/claude-usage-dashboard/internal/gateway"
	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/metrics"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/services/credentials"
	"github.com/j-veylop/claude-usage-dashboard/internal/services/secret"
	"github.com/j-veylop/claude-usage-dashboard/internal/services/usage"
)

// ErrStorageDisabled is returned by every store query when the store could
// not be opened. Live usage still works in that mode.
var ErrStorageDisabled = errors.New("storage disabled")

// SettingNotifications is the setting key that overrides the notifications
// config value.
const SettingNotifications = "notifications"

// Utilization thresholds that trigger a desktop notification when crossed
// upward, and the drop that counts as a quota reset.
var notifyThresholds = []float64{80, 95}

const resetDrop = 20.0

type (
	// UsageUpdatedEvent is emitted after every fetch, failed or not.
	UsageUpdatedEvent struct {
		Data models.UsageData
	}

	// TokensUpdatedEvent is emitted when the gateway stores a report.
	TokensUpdatedEvent struct {
		Report models.TokenReport
	}

	// CredentialsChangedEvent is emitted when the credential file is rewritten.
	CredentialsChangedEvent struct{}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (UsageUpdatedEvent) isServiceEvent()       {}
func (TokensUpdatedEvent) isServiceEvent()      {}
func (CredentialsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()              {}

// Option configures a Manager.
type Option func(*Manager)

// WithUsageSource replaces the remote fetcher.
func WithUsageSource(src usage.Source) Option {
	return func(m *Manager) { m.source = src }
}

// WithCredentials replaces the credential manager built from the config.
func WithCredentials(c *credentials.Manager) Option {
	return func(m *Manager) { m.creds = c }
}

// WithNotify replaces desktop notification delivery.
func WithNotify(fn func(title, message string) error) Option {
	return func(m *Manager) { m.notify = fn }
}

// Manager owns the store handle and wires every service around it. The store
// is nil in degraded mode.
type Manager struct {
	cfg      *config.Config
	store    *db.DB
	creds    *credentials.Manager
	watcher  *credentials.Watcher
	source   usage.Source
	usage    *usage.Service
	metrics  *metrics.Metrics
	notify   func(title, message string) error
	secret   string
	previous map[string]float64

	ctx           context.Context
	cancel        context.CancelFunc
	stopChan      chan struct{}
	subscribers   []chan ServiceEvent
	gatewayCancel context.CancelFunc
	gatewayAddr   net.Addr
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closeOnce     sync.Once
}

// NewManager creates a new service manager. A store that fails to open is
// logged and leaves the manager in degraded mode rather than failing.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		metrics:  metrics.New(),
		previous: make(map[string]float64),
		stopChan: make(chan struct{}),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.openStore()

	if m.creds == nil {
		m.creds = credentials.New(cfg.CredentialsPath)
	}
	if m.source == nil {
		m.source = usage.NewFetcher(m.creds, usage.WithMetrics(m.metrics))
	}

	if w, err := credentials.NewWatcher(cfg.CredentialsPath); err != nil {
		logger.Warn("credential file watcher disabled", "error", err)
	} else {
		m.watcher = w
	}

	var snapshots usage.SnapshotStore
	if m.store != nil {
		snapshots = m.store
	}
	m.usage = usage.NewService(m.source, snapshots, usage.Config{
		Metrics:      m.metrics,
		PollInterval: cfg.PollInterval,
	})

	m.wg.Add(1)
	go m.routeEvents()

	return m, nil
}

func (m *Manager) openStore() {
	if err := m.cfg.EnsureDataDir(); err != nil {
		logger.Warn("storage disabled: no data directory", "error", err)
		return
	}
	if m.cfg.DatabasePath == "" {
		logger.Warn("storage disabled: no database path")
		return
	}

	store, err := db.New(m.cfg.DatabasePath, db.WithRetention(m.cfg.Retention()))
	if err != nil {
		logger.Warn("failed to initialize storage, running without history", "error", err)
		return
	}
	m.store = store
	m.metrics.RegisterStoreCollector(store)

	sec, err := secret.LoadOrCreate(m.cfg.SecretPath)
	if err != nil {
		logger.Warn("failed to persist gateway secret, using an ephemeral one", "error", err)
		sec, err = secret.Ephemeral()
		if err != nil {
			logger.Error("failed to generate gateway secret", "error", err)
		}
	}
	m.secret = sec
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	defer m.wg.Done()

	var changes <-chan struct{}
	if m.watcher != nil {
		changes = m.watcher.Changes()
	}

	for {
		select {
		case event := <-m.usage.Events():
			m.handleUsageEvent(event)

		case <-changes:
			if m.creds.IsOwnWrite() {
				logger.Debug("ignoring credential rewrite from token refresh")
				continue
			}
			m.broadcast(CredentialsChangedEvent{})
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.usage.Refresh(m.ctx)
			}()

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleUsageEvent(event usage.Event) {
	m.broadcast(UsageUpdatedEvent{Data: event.Data})

	switch event.Type {
	case usage.EventUsageUpdated:
		m.checkNotifications(event.Data.Buckets)
	case usage.EventUsageError:
		m.broadcast(ErrorEvent{Service: "usage", Error: errors.New(event.Data.Unavailable())})
	}
}

// checkNotifications compares each bucket with its previous reading. Only
// routeEvents calls it, so previous needs no lock.
func (m *Manager) checkNotifications(buckets []models.UsageBucket) {
	enabled := m.notificationsEnabled()

	for _, b := range buckets {
		prev, seen := m.previous[b.Label]
		m.previous[b.Label] = b.Utilization
		if !seen || !enabled {
			continue
		}

		for _, th := range notifyThresholds {
			if prev < th && b.Utilization >= th {
				m.send(
					fmt.Sprintf("Claude usage above %.0f%%: %s", th, b.Label),
					fmt.Sprintf("%s is at %.1f%% of its limit.", b.Label, b.Utilization),
				)
			}
		}

		if prev-b.Utilization > resetDrop {
			m.send(
				fmt.Sprintf("Quota reset: %s", b.Label),
				fmt.Sprintf("%s dropped to %.1f%%.", b.Label, b.Utilization),
			)
		}
	}
}

func (m *Manager) send(title, message string) {
	if err := m.notify(title, message); err != nil {
		logger.Warn("failed to send notification", "title", title, "error", err)
	}
}

// notificationsEnabled reads the stored setting, falling back to config.
func (m *Manager) notificationsEnabled() bool {
	if m.store != nil {
		v, ok, err := m.store.Setting(context.Background(), SettingNotifications)
		if err == nil && ok {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return m.cfg.Notifications
}

// TokensUpdated implements gateway.Notifier.
func (m *Manager) TokensUpdated(report models.TokenReport) {
	m.broadcast(TokensUpdatedEvent{Report: report})
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// StartGateway binds the ingestion gateway and serves it in the background
// until ctx is cancelled or the manager is closed.
func (m *Manager) StartGateway(ctx context.Context) error {
	if m.store == nil {
		return ErrStorageDisabled
	}

	router := gateway.NewRouter(gateway.Deps{
		Store:    m.store,
		Notifier: m,
		Metrics:  m.metrics,
		Secret:   m.secret,
	})
	srv := gateway.NewServer(m.cfg.Addr(), router)
	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	gwCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.gatewayCancel = cancel
	m.gatewayAddr = addr
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := srv.Serve(gwCtx); err != nil {
			logger.Error("token server failed", "error", err)
			m.broadcast(ErrorEvent{Service: "gateway", Error: err})
		}
	}()
	return nil
}

// GatewayAddr returns the bound gateway address, or nil if it is not running.
func (m *Manager) GatewayAddr() net.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gatewayAddr
}

// StorageEnabled reports whether the store opened.
func (m *Manager) StorageEnabled() bool {
	return m.store != nil
}

// Secret returns the gateway secret, empty in degraded mode.
func (m *Manager) Secret() string {
	return m.secret
}

// Metrics returns the metrics registry wrapper.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// FetchUsage triggers a manual refresh. A throttled call returns the latest
// reading instead.
func (m *Manager) FetchUsage(ctx context.Context) models.UsageData {
	data, _ := m.usage.Refresh(ctx)
	return data
}

// CurrentUsage returns the latest reading and whether one exists.
func (m *Manager) CurrentUsage() (models.UsageData, bool) {
	return m.usage.Latest()
}

// Close stops the gateway and poller, then closes the store.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.gatewayCancel != nil {
			m.gatewayCancel()
		}
		m.mu.Unlock()

		m.cancel()
		close(m.stopChan)

		if err := m.usage.Close(); err != nil {
			errs = append(errs, err)
		}
		if m.watcher != nil {
			if err := m.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		waitTimeout(&m.wg, 15*time.Second)

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.store != nil {
			if err := m.store.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		logger.Warn("timed out waiting for services to stop")
	}
}
