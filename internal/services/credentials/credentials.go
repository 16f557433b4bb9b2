// Package credentials reads and refreshes the OAuth credentials written by
// the Claude CLI.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

const (
	// DefaultTokenURL is the OAuth token endpoint used for refresh grants.
	DefaultTokenURL = "https://console.anthropic.com/v1/oauth/token"

	// ClientID is the public OAuth client id of the Claude CLI.
	ClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	defaultExpiresIn = 86400
	requestTimeout   = 30 * time.Second
	oauthKey         = "claudeAiOauth"
)

// The messages are shown to the user verbatim.
var (
	ErrNotLoggedIn    = errors.New("Credentials file not found. Run: claude /login")
	ErrNoAccessToken  = errors.New("No access token found in credentials")
	ErrNoRefreshToken = errors.New("No refresh token found")
)

// Record is the OAuth section of the credential file.
type Record struct {
	ExpiresAt    time.Time
	AccessToken  string
	RefreshToken string
}

// Expired reports whether the access token has passed its expiry.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

type fileFormat struct {
	OAuth *struct {
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		ExpiresAt    json.RawMessage `json:"expiresAt"`
	} `json:"claudeAiOauth"`
}

type tokenResponse struct {
	ExpiresIn    json.RawMessage `json:"expires_in"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

// wholeNumber reads a non-negative integer written as an integer, a float
// with no fraction or a numeric string. Anything else reports false.
func wholeNumber(raw json.RawMessage) (int64, bool) {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if v == "" || v == "null" {
		return 0, false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f < 0 || f >= math.MaxInt64 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// fileStamp identifies one version of the credential file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// Manager reads the credential file and performs refresh grants. Refreshes
// are serialized so two rewrites never interleave.
type Manager struct {
	client   *http.Client
	now      func() time.Time
	path     string
	tokenURL string
	mu       sync.Mutex

	stampMu sync.Mutex
	written *fileStamp
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for refresh requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(m *Manager) { m.tokenURL = u }
}

// WithClock overrides the time source used to compute expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New returns a Manager for the credential file at path.
func New(path string, opts ...Option) *Manager {
	m := &Manager{
		path:     path,
		tokenURL: DefaultTokenURL,
		now:      time.Now,
		client:   &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the credential file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads and parses the credential file.
func (m *Manager) Load() (*Record, error) {
	data, err := m.readFile()
	if err != nil {
		return nil, err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if f.OAuth == nil {
		return &Record{}, nil
	}

	rec := &Record{
		AccessToken:  f.OAuth.AccessToken,
		RefreshToken: f.OAuth.RefreshToken,
	}
	// The CLI owns this field; an unexpected encoding only loses the expiry.
	if ms, ok := wholeNumber(f.OAuth.ExpiresAt); ok && ms > 0 {
		rec.ExpiresAt = time.UnixMilli(ms)
	}
	return rec, nil
}

// ReadAccessToken returns the stored access token.
func (m *Manager) ReadAccessToken(_ context.Context) (string, error) {
	rec, err := m.Load()
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return rec.AccessToken, nil
}

// RefreshAccessToken exchanges the stored refresh token for a new access
// token, rewrites the credential file atomically and returns the new token.
// Keys other than the ones it updates are preserved.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.readDocument()
	if err != nil {
		return "", err
	}

	oauth, _ := doc[oauthKey].(map[string]any)
	refreshToken, _ := oauth["refreshToken"].(string)
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	issuedAt := m.now()

	tok, err := m.requestToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	expiresIn, ok := wholeNumber(tok.ExpiresIn)
	if !ok {
		expiresIn = defaultExpiresIn
	}

	oauth["accessToken"] = tok.AccessToken
	if tok.RefreshToken != "" {
		oauth["refreshToken"] = tok.RefreshToken
	}
	oauth["expiresAt"] = issuedAt.UnixMilli() + expiresIn*1000

	if err := writeAtomic(m.path, doc); err != nil {
		return "", err
	}
	m.recordWrite()

	logger.Info("refreshed access token", "expires_in", expiresIn)
	return tok.AccessToken, nil
}

func (m *Manager) recordWrite() {
	fi, err := os.Stat(m.path)
	m.stampMu.Lock()
	defer m.stampMu.Unlock()
	if err != nil {
		m.written = nil
		return
	}
	m.written = &fileStamp{modTime: fi.ModTime(), size: fi.Size()}
}

// IsOwnWrite reports whether the file on disk is still the one the last
// refresh wrote. Watcher signals for it carry no new login.
func (m *Manager) IsOwnWrite() bool {
	fi, err := os.Stat(m.path)
	if err != nil {
		return false
	}
	m.stampMu.Lock()
	defer m.stampMu.Unlock()
	return m.written != nil && m.written.size == fi.Size() && m.written.modTime.Equal(fi.ModTime())
}

func (m *Manager) requestToken(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}
	return &tok, nil
}

func (m *Manager) readFile() ([]byte, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return data, nil
}

// readDocument decodes the whole file generically. Numbers stay json.Number
// so unrelated integers survive a rewrite unchanged.
func (m *Manager) readDocument() (map[string]any, error) {
	data, err := m.readFile()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if doc == nil {
		return nil, ErrNoRefreshToken
	}
	return doc, nil
}

// writeAtomic replaces path with doc via a synced sibling temp file.
func writeAtomic(path string, doc map[string]any) (err error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync credentials: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close credentials: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}
