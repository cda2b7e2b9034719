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
	"sync/atomic"
	"testing"
	"time"
)

func testTokenManager(accessToken string) *TokenManager {
	return NewTokenManager(TokenConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  accessToken,
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil)
}

func testClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:  baseURL,
		ClientID: "client-id",
	}, testTokenManager("access-token"))
}

func TestBuildURL(t *testing.T) {
	c := testClient("https://api.example.com")

	tests := []struct {
		name     string
		template string
		params   map[string]any
		want     string
	}{
		{
			name:     "path segment substituted",
			template: "/users/me/history/:type",
			params:   map[string]any{"type": "movies"},
			want:     "https://api.example.com/users/me/history/movies",
		},
		{
			name:     "unresolved segment stripped",
			template: "/users/me/history/:type",
			params:   nil,
			want:     "https://api.example.com/users/me/history",
		},
		{
			name:     "extra params become sorted query",
			template: "/users/me/history/:type",
			params:   map[string]any{"type": "shows", "limit": 10, "page": 2},
			want:     "https://api.example.com/users/me/history/shows?limit=10&page=2",
		},
		{
			name:     "nil param treated as unresolved",
			template: "/users/me/ratings/:type",
			params:   map[string]any{"type": nil, "limit": 5},
			want:     "https://api.example.com/users/me/ratings?limit=5",
		},
		{
			name:     "mid-path segment stripped collapses slashes",
			template: "/users/:user/watchlist/:type",
			params:   map[string]any{"type": "movies"},
			want:     "https://api.example.com/users/watchlist/movies",
		},
		{
			name:     "leading segment template",
			template: "/:type/trending",
			params:   map[string]any{"type": "shows"},
			want:     "https://api.example.com/shows/trending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.buildURL(tt.template, tt.params)
			if got != tt.want {
				t.Errorf("buildURL(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestGetSendsTraktHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, _, err := c.get(context.Background(), srv.URL+"/users/me/history"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if got := gotHeaders.Get("Authorization"); got != "Bearer access-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := gotHeaders.Get("trakt-api-key"); got != "client-id" {
		t.Errorf("trakt-api-key = %q", got)
	}
	if got := gotHeaders.Get("trakt-api-version"); got != "2" {
		t.Errorf("trakt-api-version = %q", got)
	}
}

func TestGetParsesPaginationHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination-Item-Count", "95")
		w.Header().Set("X-Pagination-Page-Count", "10")
		w.Header().Set("X-Pagination-Limit", "10")
		w.Header().Set("X-Pagination-Page", "1")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, pg, err := c.get(context.Background(), srv.URL+"/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pg.ItemCount != 95 || pg.PageCount != 10 || pg.Limit != 10 || pg.Page != 1 {
		t.Errorf("pagination = %+v", pg)
	}
}

func TestGetRefreshesOnceOn401(t *testing.T) {
	var apiCalls, refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		fmt.Fprint(w, `{"access_token":"fresh-token","refresh_token":"fresh-refresh","expires_in":7200}`)
	})
	mux.HandleFunc("/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_token","error_description":"expired"}`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(TokenConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour), // looks valid, but upstream disagrees
		TokenURL:     srv.URL + "/oauth/token",
	}, nil)
	c := NewClient(ClientConfig{BaseURL: srv.URL, ClientID: "client-id"}, tm)

	if _, _, err := c.get(context.Background(), srv.URL+"/users/me/history"); err != nil {
		t.Fatalf("get after 401 retry: %v", err)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("api calls = %d, want 2 (original + one retry)", got)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestGetSecond401IsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"fresh-token","refresh_token":"fresh-refresh","expires_in":7200}`)
	})
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token","error_description":"still expired"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(TokenConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		TokenURL:     srv.URL + "/oauth/token",
	}, nil)
	c := NewClient(ClientConfig{BaseURL: srv.URL, ClientID: "client-id"}, tm)

	_, _, err := c.get(context.Background(), srv.URL+"/x")
	if !IsUnauthorized(err) {
		t.Errorf("expected 401 APIError after retry, got %v", err)
	}
}

func TestGetNon2xxYieldsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"not_found","error_description":"no such resource"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, _, err := c.get(context.Background(), srv.URL+"/nope")

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" || apiErr.Description != "no such resource" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestGetRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.retryBaseDelay = time.Millisecond

	if _, _, err := c.get(context.Background(), srv.URL+"/x"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetchAllConcatenatesPagesInOrder(t *testing.T) {
	const pageSize = 2
	pages := map[string]string{
		"1": `[{"id":1},{"id":2}]`,
		"2": `[{"id":3},{"id":4}]`,
		"3": `[{"id":5}]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("X-Pagination-Item-Count", "5")
		w.Header().Set("X-Pagination-Page-Count", "3")
		w.Header().Set("X-Pagination-Limit", fmt.Sprint(pageSize))
		w.Header().Set("X-Pagination-Page", page)
		fmt.Fprint(w, pages[page])
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	type row struct {
		ID int `json:"id"`
	}
	items, pg, err := fetchAll[row](context.Background(), c, "/x", nil, 0)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items, want 5", len(items))
	}
	for i, item := range items {
		if item.ID != i+1 {
			t.Errorf("items[%d].ID = %d, want %d (page order violated)", i, item.ID, i+1)
		}
	}
	if pg.ItemCount != 5 {
		t.Errorf("pagination item count = %d", pg.ItemCount)
	}
}

func TestFetchAllHonorsLimit(t *testing.T) {
	var maxPage atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var p int32
		fmt.Sscanf(page, "%d", &p)
		for {
			cur := maxPage.Load()
			if p <= cur || maxPage.CompareAndSwap(cur, p) {
				break
			}
		}
		w.Header().Set("X-Pagination-Item-Count", "100")
		w.Header().Set("X-Pagination-Page-Count", "10")
		w.Header().Set("X-Pagination-Limit", "10")
		w.Header().Set("X-Pagination-Page", page)
		fmt.Fprint(w, `[{},{},{},{},{},{},{},{},{},{}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	type row struct{}
	// limit 25 with page size 10 -> last page is ceil(25/10) = 3 of 10
	items, _, err := fetchAll[row](context.Background(), c, "/x", nil, 25)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if len(items) != 25 {
		t.Errorf("got %d items, want 25 (truncated to limit)", len(items))
	}
	if got := maxPage.Load(); got != 3 {
		t.Errorf("fetched up to page %d, want 3", got)
	}
}

func TestFetchAllSinglePage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	type row struct {
		ID int `json:"id"`
	}
	items, _, err := fetchAll[row](context.Background(), c, "/x", nil, 0)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if len(items) != 1 || calls.Load() != 1 {
		t.Errorf("items=%d calls=%d, want 1/1 for unpaginated response", len(items), calls.Load())
	}
}
