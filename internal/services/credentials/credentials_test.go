package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func writeCredentials(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".credentials.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	return path
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read credentials: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("credentials are not valid JSON: %v", err)
	}
	return doc
}

// tokenServer answers refresh grants with body and records what it received.
func tokenServer(t *testing.T, status int, body string) (*httptest.Server, chan map[string]string, *int32) {
	t.Helper()
	requests := make(chan map[string]string, 4)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var got map[string]string
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode refresh request: %v", err)
		}
		requests <- got
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, requests, &calls
}

func newManager(path, url string) *Manager {
	return New(path, WithTokenURL(url), WithClock(func() time.Time { return fixedNow }))
}

func TestReadAccessToken(t *testing.T) {
	path := writeCredentials(t, `{"claudeAiOauth":{"accessToken":"abc","refreshToken":"r1","expiresAt":1773144000000}}`)

	m := New(path)
	tok, err := m.ReadAccessToken(context.Background())
	if err != nil {
		t.Fatalf("ReadAccessToken() failed: %v", err)
	}
	if tok != "abc" {
		t.Errorf("ReadAccessToken() = %q, want abc", tok)
	}

	rec, err := m.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if rec.RefreshToken != "r1" || rec.ExpiresAt.UnixMilli() != 1773144000000 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.Expired(rec.ExpiresAt) || rec.Expired(rec.ExpiresAt.Add(-time.Second)) {
		t.Error("Expired() should flip exactly at ExpiresAt")
	}
}

func TestReadAccessToken_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"NoOAuthSection", `{"other":true}`, ErrNoAccessToken},
		{"EmptyToken", `{"claudeAiOauth":{"refreshToken":"r1"}}`, ErrNoAccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(writeCredentials(t, tt.content))
			if _, err := m.ReadAccessToken(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("Missing", func(t *testing.T) {
		m := New(filepath.Join(t.TempDir(), "missing.json"))
		_, err := m.ReadAccessToken(context.Background())
		if !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("expected ErrNotLoggedIn, got %v", err)
		}
		if err.Error() != "Credentials file not found. Run: claude /login" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		m := New(writeCredentials(t, `{not json`))
		_, err := m.ReadAccessToken(context.Background())
		if err == nil || errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("expected a parse error, got %v", err)
		}
	})
}

func TestRefreshAccessToken_RewritesFile(t *testing.T) {
	path := writeCredentials(t, `{"claudeAiOauth":{"refreshToken":"r1","accessToken":"old","scopes":["user:inference"]},"mcpOAuth":{"x":1}}`)
	srv, got, calls := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":100}`)

	m := newManager(path, srv.URL)
	tok, err := m.RefreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("RefreshAccessToken() failed: %v", err)
	}
	if tok != "new" {
		t.Errorf("RefreshAccessToken() = %q, want new", tok)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("expected 1 token request, got %d", n)
	}

	req := <-got
	if req["grant_type"] != "refresh_token" || req["refresh_token"] != "r1" || req["client_id"] != ClientID {
		t.Errorf("unexpected refresh request: %v", req)
	}

	doc := readJSON(t, path)
	oauth := doc["claudeAiOauth"].(map[string]any)
	if oauth["accessToken"] != "new" {
		t.Errorf("accessToken = %v, want new", oauth["accessToken"])
	}
	if oauth["refreshToken"] != "r1" {
		t.Errorf("refreshToken should be kept when not rotated, got %v", oauth["refreshToken"])
	}
	if want := float64(fixedNow.UnixMilli() + 100000); oauth["expiresAt"] != want {
		t.Errorf("expiresAt = %v, want %v", oauth["expiresAt"], want)
	}
	if _, ok := oauth["scopes"]; !ok {
		t.Error("unknown oauth keys should be preserved")
	}
	if _, ok := doc["mcpOAuth"]; !ok {
		t.Error("unknown top-level keys should be preserved")
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not be left behind")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat credentials: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestRefreshAccessToken_RotatesAndDefaultsExpiry(t *testing.T) {
	path := writeCredentials(t, `{"claudeAiOauth":{"refreshToken":"r1","accessToken":"old"}}`)
	srv, _, _ := tokenServer(t, http.StatusOK, `{"access_token":"new","refresh_token":"r2"}`)

	m := newManager(path, srv.URL)
	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("RefreshAccessToken() failed: %v", err)
	}

	rec, err := m.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if rec.RefreshToken != "r2" {
		t.Errorf("refresh token should rotate, got %q", rec.RefreshToken)
	}
	if want := fixedNow.Add(86400 * time.Second); !rec.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
	}
}

func TestRefreshAccessToken_Failures(t *testing.T) {
	original := `{"claudeAiOauth":{"refreshToken":"r1","accessToken":"old"}}`

	t.Run("HTTPError", func(t *testing.T) {
		path := writeCredentials(t, original)
		srv, _, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

		if _, err := newManager(path, srv.URL).RefreshAccessToken(context.Background()); err == nil {
			t.Fatal("expected error for non-success status")
		}

		data, _ := os.ReadFile(path)
		if string(data) != original {
			t.Error("credential file should be untouched after a failed refresh")
		}
	})

	t.Run("NoRefreshToken", func(t *testing.T) {
		path := writeCredentials(t, `{"claudeAiOauth":{"accessToken":"old"}}`)
		srv, _, calls := tokenServer(t, http.StatusOK, `{"access_token":"new"}`)

		_, err := newManager(path, srv.URL).RefreshAccessToken(context.Background())
		if !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if atomic.LoadInt32(calls) != 0 {
			t.Error("no request should be made without a refresh token")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		m := New(filepath.Join(t.TempDir(), "missing.json"))
		if _, err := m.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("expected ErrNotLoggedIn, got %v", err)
		}
	})
}

func TestReadAccessToken_LenientExpiry(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt string
		want      int64
	}{
		{"Float", `1773144000000.0`, 1773144000000},
		{"String", `"1773144000000"`, 1773144000000},
		{"Garbage", `"soon"`, 0},
		{"Object", `{"ms":1}`, 0},
		{"Null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(writeCredentials(t, `{"claudeAiOauth":{"accessToken":"abc","expiresAt":`+tt.expiresAt+`}}`))
			tok, err := m.ReadAccessToken(context.Background())
			if err != nil || tok != "abc" {
				t.Fatalf("ReadAccessToken() = %q, %v", tok, err)
			}

			rec, err := m.Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			var got int64
			if !rec.ExpiresAt.IsZero() {
				got = rec.ExpiresAt.UnixMilli()
			}
			if got != tt.want {
				t.Errorf("ExpiresAt = %d ms, want %d", got, tt.want)
			}
		})
	}
}

func TestRefreshAccessToken_ExpiresInEncodings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{"Float", `{"access_token":"new","expires_in":3600.0}`, time.Hour},
		{"String", `{"access_token":"new","expires_in":"120"}`, 2 * time.Minute},
		{"Fractional", `{"access_token":"new","expires_in":1.5}`, 86400 * time.Second},
		{"Negative", `{"access_token":"new","expires_in":-5}`, 86400 * time.Second},
		{"Null", `{"access_token":"new","expires_in":null}`, 86400 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCredentials(t, `{"claudeAiOauth":{"refreshToken":"r1","accessToken":"old"}}`)
			srv, _, _ := tokenServer(t, http.StatusOK, tt.body)

			m := newManager(path, srv.URL)
			if _, err := m.RefreshAccessToken(context.Background()); err != nil {
				t.Fatalf("RefreshAccessToken() failed: %v", err)
			}
			rec, err := m.Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if want := fixedNow.Add(tt.want); !rec.ExpiresAt.Equal(want) {
				t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
			}
		})
	}
}

func TestIsOwnWrite(t *testing.T) {
	path := writeCredentials(t, `{"claudeAiOauth":{"refreshToken":"r1","accessToken":"old"}}`)
	srv, _, _ := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":100}`)

	m := newManager(path, srv.URL)
	if m.IsOwnWrite() {
		t.Fatal("a file the manager never wrote is not its own")
	}

	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("RefreshAccessToken() failed: %v", err)
	}
	if !m.IsOwnWrite() {
		t.Fatal("the file just rewritten by a refresh should be recognized")
	}

	// A login by the CLI replaces the file with different content.
	if err := os.WriteFile(path, []byte(`{"claudeAiOauth":{"accessToken":"fresh-login","refreshToken":"r9"}}`), 0o600); err != nil {
		t.Fatalf("failed to rewrite credentials: %v", err)
	}
	if m.IsOwnWrite() {
		t.Error("an external rewrite should not be mistaken for our own")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove credentials: %v", err)
	}
	if m.IsOwnWrite() {
		t.Error("a missing file is never our own write")
	}
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	path := writeCredentials(t, `{}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Close()

	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("failed to write other file: %v", err)
	}
	select {
	case <-w.Changes():
		t.Fatal("unexpected change signal for unrelated file")
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte(`{"claudeAiOauth":{}}`), 0o600); err != nil {
		t.Fatalf("failed to rewrite credentials: %v", err)
	}
	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal")
	}
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "nope", ".credentials.json")); err == nil {
		t.Error("expected error when the directory does not exist")
	}
}
