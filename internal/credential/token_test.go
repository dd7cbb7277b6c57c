package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// tokenServer returns a token endpoint that issues tok1, tok2, ... and counts
// requests.
func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.URL.Query().Get("client_id"); got != "app-key" {
			t.Errorf("client_id = %q, want app-key", got)
		}
		if got := r.URL.Query().Get("client_secret"); got != "app-secret" {
			t.Errorf("client_secret = %q, want app-secret", got)
		}
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok%d","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestSource(t *testing.T, endpoint string) *TokenSource {
	t.Helper()
	return NewTokenSource(endpoint, "app-key", "app-secret", zerolog.Nop())
}

func TestTokenLazyFetchAndReuse(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	ts := newTestSource(t, srv.URL)

	if got := ts.Token(context.Background()); got != "tok1" {
		t.Errorf("Token() = %q, want tok1", got)
	}
	if got := ts.Token(context.Background()); got != "tok1" {
		t.Errorf("second Token() = %q, want cached tok1", got)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
}

func TestTokenRefreshBoundary(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	ts := newTestSource(t, srv.URL)

	base := time.Now()
	elapsed := time.Duration(0)
	ts.now = func() time.Time { return base.Add(elapsed) }

	ts.Token(context.Background())

	// 31s of lifetime left: still valid, no refresh.
	elapsed = 3569 * time.Second
	if got := ts.Token(context.Background()); got != "tok1" {
		t.Errorf("Token() at +3569s = %q, want tok1", got)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("endpoint called %d times at +3569s, want 1", got)
	}

	// Exactly 30s left: expired, refresh.
	elapsed = 3570 * time.Second
	if got := ts.Token(context.Background()); got != "tok2" {
		t.Errorf("Token() at +3570s = %q, want refreshed tok2", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("endpoint called %d times at +3570s, want 2", got)
	}
}

func TestFailedRefreshKeepsPreviousToken(t *testing.T) {
	var failing atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "backend unavailable", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"access_token":"tok1","expires_in":3600}`)
	}))
	defer srv.Close()

	ts := newTestSource(t, srv.URL)
	base := time.Now()
	elapsed := time.Duration(0)
	ts.now = func() time.Time { return base.Add(elapsed) }

	ts.Token(context.Background())
	wantExpiry := ts.expiresAt

	failing.Store(true)
	elapsed = 4000 * time.Second

	if got := ts.Token(context.Background()); got != "tok1" {
		t.Errorf("Token() after failed refresh = %q, want stale tok1", got)
	}
	if ts.accessToken != "tok1" || !ts.expiresAt.Equal(wantExpiry) {
		t.Errorf("failed refresh mutated state: token=%q expiresAt=%v, want tok1/%v",
			ts.accessToken, ts.expiresAt, wantExpiry)
	}

	// Still expired, so every call retries the refresh.
	ts.Token(context.Background())
	if got := calls.Load(); got != 3 {
		t.Errorf("endpoint called %d times, want 3", got)
	}
}

func TestTokenNeverIssued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ts := newTestSource(t, srv.URL)
	if got := ts.Token(context.Background()); got != "" {
		t.Errorf("Token() with failing endpoint = %q, want empty", got)
	}
}

func TestMalformedTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	ts := newTestSource(t, srv.URL)
	if got := ts.Token(context.Background()); got != "" {
		t.Errorf("Token() with malformed response = %q, want empty", got)
	}
	if ts.valid() {
		t.Error("source should remain in the expired state")
	}
}
