// Package usage fetches quota utilization from the remote usage API and polls
// it on an interval.
package usage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/metrics"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

const (
	// DefaultURL is the remote usage endpoint.
	DefaultURL = "https://api.anthropic.com/api/oauth/usage"

	betaHeader     = "oauth-2025-04-20"
	requestTimeout = 30 * time.Second
)

// TokenSource supplies and refreshes the OAuth access token.
// *credentials.Manager implements it.
type TokenSource interface {
	ReadAccessToken(ctx context.Context) (string, error)
	RefreshAccessToken(ctx context.Context) (string, error)
}

// Fetcher performs one usage request per call, refreshing the token at most
// once when the API answers 401.
type Fetcher struct {
	creds   TokenSource
	client  *http.Client
	metrics *metrics.Metrics
	now     func() time.Time
	url     string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for usage requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithURL overrides the usage endpoint.
func WithURL(u string) FetcherOption {
	return func(f *Fetcher) { f.url = u }
}

// WithMetrics records fetch and refresh outcomes.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithClock overrides the time stamped on results.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher returns a Fetcher reading tokens from creds.
func NewFetcher(creds TokenSource, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		creds:  creds,
		client: &http.Client{Timeout: requestTimeout},
		now:    time.Now,
		url:    DefaultURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the current usage. It never fails: any error along the way
// yields a result with no buckets and a reason in Error.
func (f *Fetcher) Fetch(ctx context.Context) models.UsageData {
	data := f.fetch(ctx)
	data.FetchedAt = f.now()

	if data.OK() {
		f.metrics.IncFetch(metrics.ResultOK)
		for _, b := range data.Buckets {
			f.metrics.SetBucketUtilization(b.Label, b.Utilization)
		}
	} else {
		f.metrics.IncFetch(metrics.ResultError)
		logger.Warn("usage fetch failed", "reason", data.Error)
	}
	return data
}

func (f *Fetcher) fetch(ctx context.Context) models.UsageData {
	token, err := f.creds.ReadAccessToken(ctx)
	if err != nil {
		return failed(err.Error())
	}

	status, body, err := f.do(ctx, token)
	if err != nil {
		return failed(fmt.Sprintf("Request failed: %v", err))
	}

	if status.code == http.StatusUnauthorized {
		newToken, err := f.creds.RefreshAccessToken(ctx)
		if err != nil {
			f.metrics.IncTokenRefresh(metrics.ResultError)
			return failed(fmt.Sprintf("Token refresh failed: %v", err))
		}
		f.metrics.IncTokenRefresh(metrics.ResultOK)

		status, body, err = f.do(ctx, newToken)
		if err != nil {
			return failed(fmt.Sprintf("Retry failed: %v", err))
		}
	}

	if status.code < 200 || status.code > 299 {
		return failed("API error: " + status.text)
	}

	buckets, err := parseBuckets(body)
	if err != nil {
		return failed(fmt.Sprintf("Parse error: %v", err))
	}
	return models.UsageData{Buckets: buckets}
}

type httpStatus struct {
	text string
	code int
}

func (f *Fetcher) do(ctx context.Context, token string) (httpStatus, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return httpStatus{}, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("anthropic-beta", betaHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return httpStatus{}, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpStatus{}, nil, err
	}
	return httpStatus{code: resp.StatusCode, text: resp.Status}, body, nil
}

func failed(reason string) models.UsageData {
	return models.UsageData{Error: reason}
}
