// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
)

// tokenResponse is the body of a successful /oauth/token exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// TokenPersister stores a rotated token pair durably. Trakt refresh tokens
// are single-use: losing the new one after a rotation locks the account out
// until the user re-authorizes, so persistence failures are surfaced loudly.
type TokenPersister interface {
	SaveTokens(accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenManager owns the OAuth access/refresh token pair and its lifecycle.
// It refreshes proactively when the access token is absent or expired, and
// reactively when an upstream call reports 401.
//
// Concurrent callers needing a refresh share one in-flight exchange: the
// refresh token is single-use, so two simultaneous refreshes would burn the
// rotation and strand one caller with a dead token.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	persister    TokenPersister

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	inflight     chan struct{} // closed when the current refresh finishes
	inflightErr  error
}

// TokenConfig seeds a TokenManager.
type TokenConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenURL     string // defaults to the Trakt OAuth endpoint
}

// NewTokenManager builds a TokenManager from the stored credential state.
// persister may be nil, in which case rotations are held in memory only.
func NewTokenManager(cfg TokenConfig, persister TokenPersister) *TokenManager {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultBaseURL + "/oauth/token"
	}
	return &TokenManager{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		persister:    persister,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		expiresAt:    cfg.ExpiresAt,
	}
}

// AccessToken returns the current access token without validity checks.
func (tm *TokenManager) AccessToken() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.accessToken
}

// ExpiresAt returns the current token's expiry instant, zero when unknown.
func (tm *TokenManager) ExpiresAt() time.Time {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.expiresAt
}

// EnsureValid guarantees a non-expired access token is available, refreshing
// first if the current one is absent or past its expiry instant. It returns
// the token to use for the next upstream call.
func (tm *TokenManager) EnsureValid(ctx context.Context) (string, error) {
	tm.mu.Lock()
	if tm.accessToken != "" && (tm.expiresAt.IsZero() || tm.expiresAt.After(time.Now())) {
		token := tm.accessToken
		tm.mu.Unlock()
		return token, nil
	}
	tm.mu.Unlock()

	return tm.refresh(ctx)
}

// ForceRefresh unconditionally exchanges the refresh token for a new pair.
// Used on 401, where the provider has just declared the current token
// invalid and a conditional EnsureValid would short-circuit.
func (tm *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	return tm.refresh(ctx)
}

// refresh performs (or joins) a single-flight token exchange. The first
// caller runs the exchange; everyone else waits for its outcome.
func (tm *TokenManager) refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	if tm.inflight != nil {
		done := tm.inflight
		tm.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}

		tm.mu.Lock()
		defer tm.mu.Unlock()
		if tm.inflightErr != nil {
			return "", tm.inflightErr
		}
		return tm.accessToken, nil
	}

	done := make(chan struct{})
	tm.inflight = done
	refreshToken := tm.refreshToken
	tm.mu.Unlock()

	token, expiresAt, newRefresh, err := tm.exchange(ctx, refreshToken)

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.inflight = nil
	tm.inflightErr = err
	close(done)

	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		// On failure no state is mutated; the caller decides what to do.
		return "", err
	}

	tm.accessToken = token
	tm.refreshToken = newRefresh
	tm.expiresAt = expiresAt
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	logging.Info().Time("expires_at", expiresAt).Msg("Trakt access token refreshed")

	if tm.persister != nil {
		if perr := tm.persister.SaveTokens(token, newRefresh, expiresAt); perr != nil {
			logging.Error().Err(perr).Msg("Failed to persist rotated refresh token; re-authorization will be required after restart")
		}
	}
	return token, nil
}

// exchange performs the actual OAuth refresh_token grant.
func (tm *TokenManager) exchange(ctx context.Context, refreshToken string) (access string, expiresAt time.Time, newRefresh string, err error) {
	if refreshToken == "" {
		return "", time.Time{}, "", fmt.Errorf("no refresh token configured")
	}

	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     tm.clientID,
		"client_secret": tm.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, "", fmt.Errorf("token refresh: %w", newAPIError(resp.StatusCode, respBody))
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", time.Time{}, "", fmt.Errorf("decode refresh response: %w", err)
	}
	if token.AccessToken == "" {
		return "", time.Time{}, "", fmt.Errorf("token refresh returned empty access token")
	}

	expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return token.AccessToken, expiresAt, token.RefreshToken, nil
}
