package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response of the gateway metrics endpoint.
type Summary struct {
	Reports   reportSummary      `json:"reports"`
	HTTP      httpSummary        `json:"http"`
	Fetch     fetchSummary       `json:"fetch"`
	Buckets   map[string]float64 `json:"buckets"`
	Store     map[string]float64 `json:"store"`
	Server    serverInfo         `json:"server"`
	Auth      authInfo           `json:"auth"`
	RateLimit rateLimitInfo      `json:"rateLimit"`
}

type reportSummary struct {
	Accepted     float64 `json:"accepted"`
	Invalid      float64 `json:"invalid"`
	BadJSON      float64 `json:"badJson"`
	StorageError float64 `json:"storageError"`
	Tokens       float64 `json:"tokens"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
}

type fetchSummary struct {
	OK             float64 `json:"ok"`
	Errors         float64 `json:"errors"`
	Refreshes      float64 `json:"refreshes"`
	RefreshErrors  float64 `json:"refreshErrors"`
	SnapshotErrors float64 `json:"snapshotErrors"`
}

type authInfo struct {
	Failures float64 `json:"failures"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler returns an http.HandlerFunc that serves a JSON summary.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	reports := fam["cud_token_reports_total"]
	fetches := fam["cud_usage_fetches_total"]
	refreshes := fam["cud_token_refreshes_total"]
	start := gaugeValue(fam["cud_server_start_time_seconds"])

	return Summary{
		Reports: reportSummary{
			Accepted:     counterWithLabel(reports, "result", ReportAccepted),
			Invalid:      counterWithLabel(reports, "result", ReportInvalid),
			BadJSON:      counterWithLabel(reports, "result", ReportBadJSON),
			StorageError: counterWithLabel(reports, "result", ReportStorageError),
			Tokens:       sumCounter(fam["cud_reported_tokens_total"]),
		},
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["cud_http_requests_total"]),
			ErrorRate:     errorRate(fam["cud_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["cud_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["cud_http_request_duration_seconds"], 0.95),
		},
		Fetch: fetchSummary{
			OK:             counterWithLabel(fetches, "result", ResultOK),
			Errors:         counterWithLabel(fetches, "result", ResultError),
			Refreshes:      sumCounter(refreshes),
			RefreshErrors:  counterWithLabel(refreshes, "result", ResultError),
			SnapshotErrors: sumCounter(fam["cud_snapshot_write_failures_total"]),
		},
		Buckets: gaugesByLabel(fam["cud_bucket_utilization_percent"], "bucket"),
		Store:   gaugesByLabel(fam["cud_store_rows"], "table"),
		Auth: authInfo{
			Failures: sumCounter(fam["cud_auth_failures_total"]),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["cud_ratelimit_rejections_total"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetGauge() == nil {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

func labelValue(m *dto.Metric, name string) (string, bool) {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue(), true
		}
	}
	return "", false
}

func counterWithLabel(f *dto.MetricFamily, labelName, want string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if v, ok := labelValue(m, labelName); ok && v == want && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugesByLabel(f *dto.MetricFamily, labelName string) map[string]float64 {
	out := make(map[string]float64)
	if f == nil {
		return out
	}
	for _, m := range f.GetMetric() {
		if v, ok := labelValue(m, labelName); ok && m.GetGauge() != nil {
			out[v] = m.GetGauge().GetValue()
		}
	}
	return out
}

// errorRate is the share of requests that ended with a 4xx or 5xx status.
func errorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errs float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		if code, ok := labelValue(m, "status_code"); ok && code != "" && code[0] >= '4' {
			errs += v
		}
	}
	if total == 0 {
		return 0
	}
	return errs / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	var totalCount uint64
	cumulative := make(map[float64]uint64)
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		if !math.IsInf(ub, 1) {
			bounds = append(bounds, ub)
		}
	}
	sort.Float64s(bounds)

	rank := q * float64(totalCount)
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		count := cumulative[ub]
		if float64(count) >= rank {
			inBucket := count - prevCount
			if inBucket == 0 {
				return ub
			}
			fraction := (rank - float64(prevCount)) / float64(inBucket)
			return prevBound + fraction*(ub-prevBound)
		}
		prevBound, prevCount = ub, count
	}
	if len(bounds) > 0 {
		return bounds[len(bounds)-1]
	}
	return 0
}
