package usage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/metrics"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

// EventType defines the type of usage event.
type EventType int

const (
	// EventUsageUpdated indicates that a fetch succeeded.
	EventUsageUpdated EventType = iota
	// EventUsageError indicates that a fetch failed. Data.Error holds the reason.
	EventUsageError
)

// Event carries the result of one fetch.
type Event struct {
	Data models.UsageData
	Type EventType
}

// Source returns the current usage. *Fetcher implements it.
type Source interface {
	Fetch(ctx context.Context) models.UsageData
}

// SnapshotStore persists successful fetches. *db.DB implements it.
type SnapshotStore interface {
	StoreUsageSnapshot(ctx context.Context, buckets []models.UsageBucket) error
}

// Config holds configuration for the polling service.
type Config struct {
	Metrics         *metrics.Metrics
	PollInterval    time.Duration
	ManualMinPeriod time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Minute,
		ManualMinPeriod: 10 * time.Second,
	}
}

// Service polls the usage API, keeps the latest result and persists
// successful readings.
type Service struct {
	source  Source
	store   SnapshotStore
	limiter *rate.Limiter
	metrics *metrics.Metrics

	eventChan chan Event
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	fetchMu sync.Mutex
	mu      sync.RWMutex
	latest  models.UsageData
	hasData bool
}

// NewService starts polling source. store may be nil, in which case nothing
// is persisted.
func NewService(source Source, store SnapshotStore, config Config) *Service {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ManualMinPeriod <= 0 {
		config.ManualMinPeriod = defaults.ManualMinPeriod
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		source:    source,
		store:     store,
		limiter:   rate.NewLimiter(rate.Every(config.ManualMinPeriod), 1),
		metrics:   config.Metrics,
		eventChan: make(chan Event, 16),
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.poll(ctx, config.PollInterval)

	return s
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Latest returns the most recent result and whether any fetch has finished.
func (s *Service) Latest() (models.UsageData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasData
}

// Refresh fetches immediately unless a manual refresh ran too recently. It
// reports whether a fetch took place; a throttled call returns the latest
// result.
func (s *Service) Refresh(ctx context.Context) (models.UsageData, bool) {
	if !s.limiter.Allow() {
		data, _ := s.Latest()
		return data, false
	}
	return s.fetchOnce(ctx), true
}

func (s *Service) poll(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	s.fetchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fetchOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) fetchOnce(ctx context.Context) models.UsageData {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	data := s.source.Fetch(ctx)
	if ctx.Err() != nil {
		return data
	}

	s.mu.Lock()
	s.latest = data
	s.hasData = true
	s.mu.Unlock()

	if !data.OK() {
		s.sendEvent(Event{Type: EventUsageError, Data: data})
		return data
	}

	s.persist(ctx, data.Buckets)
	s.sendEvent(Event{Type: EventUsageUpdated, Data: data})
	return data
}

func (s *Service) persist(ctx context.Context, buckets []models.UsageBucket) {
	if s.store == nil || len(buckets) == 0 {
		return
	}
	if err := s.store.StoreUsageSnapshot(ctx, buckets); err != nil {
		s.metrics.IncSnapshotWriteFailure()
		logger.Warn("failed to store usage snapshot", "error", err)
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops polling and waits for an in-flight fetch to finish.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
