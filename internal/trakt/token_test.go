// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingPersister struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	calls        int
}

func (p *recordingPersister) SaveTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = accessToken
	p.refreshToken = refreshToken
	p.calls++
	return nil
}

func newRefreshServer(t *testing.T, exchanges *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := exchanges.Add(1)
		fmt.Fprintf(w, `{"access_token":"access-%d","refresh_token":"refresh-%d","expires_in":7200}`, n, n)
	}))
}

func TestEnsureValidSkipsRefreshWhenTokenLive(t *testing.T) {
	var exchanges atomic.Int32
	srv := newRefreshServer(t, &exchanges)
	defer srv.Close()

	tm := NewTokenManager(TokenConfig{
		AccessToken:  "live-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		TokenURL:     srv.URL,
	}, nil)

	token, err := tm.EnsureValid(context.Background())
	if err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if token != "live-token" {
		t.Errorf("token = %q, want the existing one", token)
	}
	if exchanges.Load() != 0 {
		t.Errorf("exchanges = %d, want 0", exchanges.Load())
	}
}

func TestEnsureValidRefreshesExpiredToken(t *testing.T) {
	var exchanges atomic.Int32
	srv := newRefreshServer(t, &exchanges)
	defer srv.Close()

	persister := &recordingPersister{}
	tm := NewTokenManager(TokenConfig{
		AccessToken:  "expired-token",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		TokenURL:     srv.URL,
	}, persister)

	token, err := tm.EnsureValid(context.Background())
	if err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if token != "access-1" {
		t.Errorf("token = %q, want access-1", token)
	}
	if persister.refreshToken != "refresh-1" {
		t.Errorf("persisted refresh token = %q, want refresh-1 (rotation must persist)", persister.refreshToken)
	}
	if persister.calls != 1 {
		t.Errorf("persist calls = %d, want 1", persister.calls)
	}
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	var exchanges atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := exchanges.Add(1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		fmt.Fprintf(w, `{"access_token":"access-%d","refresh_token":"refresh-%d","expires_in":7200}`, n, n)
	}))
	defer slow.Close()

	tm := NewTokenManager(TokenConfig{
		RefreshToken: "refresh-token",
		TokenURL:     slow.URL,
	}, nil)

	const waiters = 8
	tokens := make([]string, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = tm.EnsureValid(context.Background())
		}()
	}
	wg.Wait()

	if got := exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1 (refresh token is single-use)", got)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Errorf("waiter %d error: %v", i, errs[i])
		}
		if tokens[i] != "access-1" {
			t.Errorf("waiter %d token = %q, want access-1", i, tokens[i])
		}
	}
}

func TestRefreshFailureMutatesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"refresh token revoked"}`)
	}))
	defer srv.Close()

	persister := &recordingPersister{}
	tm := NewTokenManager(TokenConfig{
		AccessToken:  "expired-token",
		RefreshToken: "revoked-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		TokenURL:     srv.URL,
	}, persister)

	if _, err := tm.EnsureValid(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if persister.calls != 0 {
		t.Errorf("persist calls = %d, want 0 on failure", persister.calls)
	}
	if got := tm.AccessToken(); got != "expired-token" {
		t.Errorf("access token mutated to %q on failed refresh", got)
	}
}

func TestRefreshWithoutRefreshTokenFails(t *testing.T) {
	tm := NewTokenManager(TokenConfig{TokenURL: "http://127.0.0.1:0"}, nil)
	if _, err := tm.EnsureValid(context.Background()); err == nil {
		t.Error("expected error with no refresh token configured")
	}
}
