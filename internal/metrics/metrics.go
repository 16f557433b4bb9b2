// Package metrics exposes Prometheus counters for the ingestion gateway, the
// usage poller and the store.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Report results.
const (
	ReportAccepted     = "accepted"
	ReportInvalid      = "invalid"
	ReportBadJSON      = "bad_json"
	ReportStorageError = "storage_error"
)

// Fetch and refresh results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TokenReportsTotal  *prometheus.CounterVec
	ReportedTokens     prometheus.Counter
	AuthFailuresTotal  prometheus.Counter
	RateLimitRejection prometheus.Counter

	UsageFetchesTotal  *prometheus.CounterVec
	TokenRefreshTotal  *prometheus.CounterVec
	BucketUtilization  *prometheus.GaugeVec
	SnapshotWriteFails prometheus.Counter

	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cud_http_requests_total",
			Help: "Total number of gateway HTTP requests.",
		}, []string{"route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cud_http_request_duration_seconds",
			Help:    "Gateway request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		TokenReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cud_token_reports_total",
			Help: "Token reports received, by result.",
		}, []string{"result"}),

		ReportedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cud_reported_tokens_total",
			Help: "Sum of all token counters in accepted reports.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cud_auth_failures_total",
			Help: "Requests rejected for a missing or wrong bearer secret.",
		}),

		RateLimitRejection: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cud_ratelimit_rejections_total",
			Help: "Requests rejected by the sliding-window limiter.",
		}),

		UsageFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cud_usage_fetches_total",
			Help: "Remote usage fetches, by result.",
		}, []string{"result"}),

		TokenRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cud_token_refreshes_total",
			Help: "OAuth refresh attempts triggered by a 401, by result.",
		}, []string{"result"}),

		BucketUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cud_bucket_utilization_percent",
			Help: "Latest utilization reported for each quota bucket.",
		}, []string{"bucket"}),

		SnapshotWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cud_snapshot_write_failures_total",
			Help: "Usage snapshots that could not be persisted.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cud_server_start_time_seconds",
			Help: "Unix timestamp when the process started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenReportsTotal,
		m.ReportedTokens,
		m.AuthFailuresTotal,
		m.RateLimitRejection,
		m.UsageFetchesTotal,
		m.TokenRefreshTotal,
		m.BucketUtilization,
		m.SnapshotWriteFails,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterStoreCollector exposes the store's row counts.
func (m *Metrics) RegisterStoreCollector(src CountSource) {
	if m == nil {
		return
	}
	m.registry.MustRegister(NewStoreCollector(src))
}

// ObserveRequest records one finished gateway request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// IncTokenReport counts a token report outcome.
func (m *Metrics) IncTokenReport(result string) {
	if m == nil {
		return
	}
	m.TokenReportsTotal.WithLabelValues(result).Inc()
}

// AddReportedTokens adds the tokens of an accepted report.
func (m *Metrics) AddReportedTokens(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ReportedTokens.Add(float64(n))
}

// IncAuthFailure counts a rejected bearer secret.
func (m *Metrics) IncAuthFailure() {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.Inc()
}

// IncRateLimitRejection counts a request dropped by the limiter.
func (m *Metrics) IncRateLimitRejection() {
	if m == nil {
		return
	}
	m.RateLimitRejection.Inc()
}

// IncFetch counts a remote usage fetch.
func (m *Metrics) IncFetch(result string) {
	if m == nil {
		return
	}
	m.UsageFetchesTotal.WithLabelValues(result).Inc()
}

// IncTokenRefresh counts a refresh attempt.
func (m *Metrics) IncTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshTotal.WithLabelValues(result).Inc()
}

// SetBucketUtilization records the latest reading of a bucket.
func (m *Metrics) SetBucketUtilization(bucket string, v float64) {
	if m == nil {
		return
	}
	m.BucketUtilization.WithLabelValues(bucket).Set(v)
}

// IncSnapshotWriteFailure counts a usage snapshot that failed to persist.
func (m *Metrics) IncSnapshotWriteFailure() {
	if m == nil {
		return
	}
	m.SnapshotWriteFails.Inc()
}
