// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
	"github.com/tomtom215/traktrelay/internal/models"
)

const (
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
)

// Client is the low-level Trakt HTTP client. It owns URL construction,
// auth headers, the 401 refresh-and-retry path, 429 backoff, and
// pagination header parsing. Resource methods live in resources.go.
//
// Thread safety: safe for concurrent use; each call builds its own request.
type Client struct {
	baseURL        string
	clientID       string
	httpClient     *http.Client
	tokens         *TokenManager
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[*fetchResult]
	maxRetries     int
	retryBaseDelay time.Duration
}

// fetchResult carries one page of response bytes plus its pagination
// metadata through the circuit breaker.
type fetchResult struct {
	body       []byte
	pagination models.Pagination
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string  // defaults to the public Trakt API
	ClientID  string  // sent as trakt-api-key
	RateLimit float64 // requests per second; <=0 disables client-side limiting
	Timeout   time.Duration
}

// NewClient builds a Client over the given token manager.
func NewClient(cfg ClientConfig, tokens *TokenManager) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	breaker := gobreaker.NewCircuitBreaker[*fetchResult](gobreaker.Settings{
		Name:    "trakt-upstream",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit breaker state change")
		},
	})

	return &Client{
		baseURL:        baseURL,
		clientID:       cfg.ClientID,
		httpClient:     &http.Client{Timeout: timeout},
		tokens:         tokens,
		limiter:        limiter,
		breaker:        breaker,
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// buildURL expands a path template against a parameter bag. Template
// segments starting with ':' are substituted from params by name; params
// not matching any segment become query parameters. Unresolved segments are
// dropped and duplicate slashes collapsed, so omitting an optional path
// parameter shortens the path instead of erroring.
//
//	buildURL("/users/me/history/:type/:id", {"type": "movies", "limit": 10})
//	  -> /users/me/history/movies?limit=10
func (c *Client) buildURL(template string, params map[string]any) string {
	used := make(map[string]bool, len(params))
	segments := strings.Split(template, "/")
	out := segments[:0]
	for _, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			if seg != "" || len(out) == 0 {
				out = append(out, seg)
			}
			continue
		}
		name := seg[1:]
		v, ok := params[name]
		if !ok || v == nil {
			continue // unresolved placeholder: drop segment and its slash
		}
		used[name] = true
		out = append(out, url.PathEscape(fmt.Sprintf("%v", v)))
	}
	path := strings.Join(out, "/")

	query := url.Values{}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := params[name]
		if used[name] || v == nil {
			continue
		}
		query.Set(name, fmt.Sprintf("%v", v))
	}

	full := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full
}

// get issues an authenticated GET and returns the body plus pagination
// metadata parsed from the X-Pagination-* headers. It handles the
// refresh-and-retry contract: one 401 triggers exactly one unconditional
// token refresh and retry; a second 401 propagates.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, models.Pagination, error) {
	result, err := c.breaker.Execute(func() (*fetchResult, error) {
		return c.getOnce(ctx, reqURL)
	})
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return result.body, result.pagination, nil
}

func (c *Client) getOnce(ctx context.Context, reqURL string) (*fetchResult, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure token: %w", err)
	}

	result, err := c.doWithRateLimit(ctx, reqURL, token)
	if !IsUnauthorized(err) {
		return result, err
	}

	// The provider just declared the token invalid, so refresh
	// unconditionally and retry once. A second 401 is fatal.
	logging.Warn().Str("url", reqURL).Msg("Upstream returned 401; refreshing token and retrying")
	token, err = c.tokens.ForceRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh after 401: %w", err)
	}
	return c.doWithRateLimit(ctx, reqURL, token)
}

// doWithRateLimit performs one logical GET, waiting on the client-side rate
// limiter and retrying HTTP 429 with exponential backoff (1s, 2s, 4s, 8s,
// 16s), honoring Retry-After when the provider sends one.
func (c *Client) doWithRateLimit(ctx context.Context, reqURL, token string) (*fetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", apiVersion)
		req.Header.Set("trakt-api-key", c.clientID)
		req.Header.Set("Authorization", "Bearer "+token)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequestErrors.WithLabelValues("transport").Inc()
			return nil, fmt.Errorf("upstream request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			metrics.UpstreamRequestErrors.WithLabelValues("rate_limited").Inc()

			if attempt == c.maxRetries {
				lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
				break
			}

			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, perr := strconv.Atoi(retryAfter); perr == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		metrics.UpstreamRequestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			metrics.UpstreamRequestErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			return nil, newAPIError(resp.StatusCode, body)
		}

		return &fetchResult{
			body:       body,
			pagination: parsePagination(resp.Header),
		}, nil
	}

	return nil, lastErr
}

// parsePagination reads Trakt's X-Pagination-* response headers. Missing
// headers read as zero, which callers treat as "not paginated".
func parsePagination(h http.Header) models.Pagination {
	atoi := func(name string) int {
		v, _ := strconv.Atoi(h.Get(name))
		return v
	}
	return models.Pagination{
		ItemCount: atoi("X-Pagination-Item-Count"),
		PageCount: atoi("X-Pagination-Page-Count"),
		Limit:     atoi("X-Pagination-Limit"),
		Page:      atoi("X-Pagination-Page"),
	}
}
