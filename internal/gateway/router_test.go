package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/claude-usage-dashboard/internal/metrics"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

type fakeStore struct {
	err     error
	reports []models.TokenReport
	mu      sync.Mutex
}

func (f *fakeStore) StoreTokenSnapshot(_ context.Context, r models.TokenReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakeNotifier struct {
	got []models.TokenReport
	mu  sync.Mutex
}

func (f *fakeNotifier) TokensUpdated(r models.TokenReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, r)
}

type testEnv struct {
	handler  http.Handler
	store    *fakeStore
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	clock    *fakeClock
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	limiter, clock := newTestWindow(limit, time.Minute)
	env := &testEnv{
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
		metrics:  metrics.New(),
		clock:    clock,
	}
	env.handler = NewRouter(Deps{
		Store:    env.store,
		Notifier: env.notifier,
		Limiter:  limiter,
		Metrics:  env.metrics,
		Secret:   testSecret,
	})
	return env
}

const validBody = `{
	"session_id": "sess-1",
	"hostname": "laptop",
	"input_tokens": 10,
	"output_tokens": 20,
	"cache_creation_input_tokens": 30,
	"cache_read_input_tokens": 40,
	"cwd": "/work/api"
}`

func (e *testEnv) post(body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 10)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReportTokens_Accepted(t *testing.T) {
	env := newTestEnv(t, 10)

	rec := env.post(validBody, "Bearer "+testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, 1, env.store.count())
	got := env.store.reports[0]
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, int64(40), got.CacheReadInputTokens)
	require.NotNil(t, got.Cwd)
	assert.Equal(t, "/work/api", *got.Cwd)

	assert.Len(t, env.notifier.got, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.TokenReportsTotal.WithLabelValues(metrics.ReportAccepted)))
	assert.Equal(t, 100.0, testutil.ToFloat64(env.metrics.ReportedTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		env.metrics.HTTPRequestsTotal.WithLabelValues("/api/v1/tokens", "200")))
}

func TestReportTokens_Unauthorized(t *testing.T) {
	env := newTestEnv(t, 10)

	for _, auth := range []string{"", "Bearer wrong", "Bearer " + strings.ToUpper(testSecret)} {
		rec := env.post(validBody, auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", rec.Body.String())
	}
	assert.Equal(t, 0, env.store.count())
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.AuthFailuresTotal))
}

func TestReportTokens_AuthBeforeRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.post(validBody, "Bearer nope").Code)
	}
	assert.Equal(t, http.StatusOK, env.post(validBody, "Bearer "+testSecret).Code,
		"unauthenticated requests must not consume the budget")
}

func TestReportTokens_RateLimited(t *testing.T) {
	env := newTestEnv(t, 2)
	auth := "Bearer " + testSecret

	assert.Equal(t, http.StatusOK, env.post(validBody, auth).Code)
	assert.Equal(t, http.StatusOK, env.post(validBody, auth).Code)

	rec := env.post(validBody, auth)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RateLimitRejection))

	env.clock.Advance(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, env.post(validBody, auth).Code)
}

func TestReportTokens_Validation(t *testing.T) {
	long := strings.Repeat("x", 257)
	longCwd := strings.Repeat("d", 4097)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"BadJSON", `{"session_id":`, "Invalid JSON body"},
		{"WrongType", `{"session_id":"s","hostname":"h","input_tokens":"ten"}`, "Invalid JSON body"},
		{"MissingSession", `{"hostname":"h"}`, "session_id is required"},
		{"MissingHost", `{"session_id":"s"}`, "hostname is required"},
		{"LongSession", `{"session_id":"` + long + `","hostname":"h"}`, "session_id too long"},
		{"LongHost", `{"session_id":"s","hostname":"` + long + `"}`, "hostname too long"},
		{"LongCwd", `{"session_id":"s","hostname":"h","cwd":"` + longCwd + `"}`, "cwd too long"},
		{"Negative", `{"session_id":"s","hostname":"h","output_tokens":-1}`, "token counts must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 100)
			rec := env.post(tt.body, "Bearer "+testSecret)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			assert.Equal(t, 0, env.store.count())
		})
	}
}

func TestReportTokens_MultiByteLengthCountsBytes(t *testing.T) {
	env := newTestEnv(t, 10)

	// 128 two-byte runes: 128 characters but 256 bytes.
	atLimit := strings.Repeat("é", 128)
	rec := env.post(`{"session_id":"`+atLimit+`","hostname":"h"}`, "Bearer "+testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)

	over := strings.Repeat("é", 129)
	rec = env.post(`{"session_id":"`+over+`","hostname":"h"}`, "Bearer "+testSecret)
	assert.Equal(t, "session_id too long", rec.Body.String())
}

func TestReportTokens_StorageError(t *testing.T) {
	env := newTestEnv(t, 10)
	env.store.err = errors.New("database is locked")

	rec := env.post(validBody, "Bearer "+testSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", rec.Body.String())
	assert.Empty(t, env.notifier.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		env.metrics.TokenReportsTotal.WithLabelValues(metrics.ReportStorageError)))
}

func TestReportTokens_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, 10)

	body := `{"session_id":"s","hostname":"h","cwd":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := env.post(body, "Bearer "+testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", rec.Body.String())
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t, 10)
	env.post(validBody, "Bearer "+testSecret)

	for _, auth := range []string{"", "Bearer wrong-secret"} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "auth %q", auth)
		assert.NotContains(t, rec.Body.String(), "cud_")
	}

	scrape := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	scrape.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, scrape)
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `cud_token_reports_total{result="accepted"} 1`)

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":1`)
}

func TestRequestID_Propagated(t *testing.T) {
	env := newTestEnv(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "hook-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "hook-42", rec.Header().Get("X-Request-ID"))
}
