// Package credential manages the short-lived bearer tokens used by the
// token-authenticated remote speech engines. Each engine instance owns its
// own TokenSource; tokens live in memory only and are never persisted.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/metrics"
)

// ExpirySkew is subtracted from the token lifetime so a token is refreshed
// shortly before the issuer would reject it: a token counts as expired once
// 30s or less of its lifetime remains.
const ExpirySkew = 30 * time.Second

// DefaultEndpoint is Baidu's OAuth token endpoint.
const DefaultEndpoint = "https://aip.baidubce.com/oauth/2.0/token"

// TokenSource lazily fetches and refreshes a client-credentials token.
//
// It deliberately carries no lock: the concurrency contract for engines is
// single-caller, and an instance must not be shared across goroutines
// without external synchronization.
type TokenSource struct {
	endpoint  string
	appKey    string
	appSecret string
	client    *http.Client
	log       zerolog.Logger

	// now is swappable so tests can drive the expiry clock.
	now func() time.Time

	accessToken string
	expiresAt   time.Time
}

// NewTokenSource creates a token source for the given app credentials.
// endpoint is the token-issuing URL; empty selects DefaultEndpoint.
func NewTokenSource(endpoint, appKey, appSecret string, log zerolog.Logger) *TokenSource {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &TokenSource{
		endpoint:  endpoint,
		appKey:    appKey,
		appSecret: appSecret,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("component", "token-source").Logger(),
		now:       time.Now,
	}
}

// Token returns the current access token, refreshing it first when expired
// or absent. The check runs lazily on every call; there is no background
// timer.
//
// A failed refresh never clears existing state: the previous (possibly
// stale) token is returned and the failure is logged, because the only real
// evidence of invalidity is a rejection from the protected endpoint itself.
// The returned string is empty when no token has ever been issued.
func (ts *TokenSource) Token(ctx context.Context) string {
	if ts.valid() {
		return ts.accessToken
	}
	if err := ts.refresh(ctx); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		ts.log.Error().Err(err).Msg("token refresh failed, reusing previous token")
	} else {
		metrics.TokenRefreshes.WithLabelValues("success").Inc()
	}
	return ts.accessToken
}

func (ts *TokenSource) valid() bool {
	return ts.accessToken != "" && ts.now().Before(ts.expiresAt.Add(-ExpirySkew))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (ts *TokenSource) refresh(ctx context.Context) error {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", ts.appKey)
	q.Set("client_secret", ts.appSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("token response missing access_token")
	}

	ts.accessToken = tr.AccessToken
	ts.expiresAt = ts.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	ts.log.Debug().Int("expires_in", tr.ExpiresIn).Msg("token refreshed")
	return nil
}
