// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package main is the entry point for the Traktrelay server.
//
// Traktrelay is a self-hosted caching proxy in front of the Trakt API. It
// owns the OAuth token lifecycle (refresh-token rotation with single-flight
// refresh), absorbs Trakt's rate limits behind a two-tier cache (in-memory
// plus BadgerDB), and serves flattened, enriched views of the user's
// history, ratings, watchlist, and trending/search results joined against
// lazily built ratings/watched/favorites indices.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env)
//  2. Token manager: OAuth refresh with rotation persisted to a tokens file
//  3. Trakt client: rate-limited, circuit-broken upstream HTTP client
//  4. Cache store: in-memory tier over an optional BadgerDB durable tier
//  5. Cached client + enrichment service: per-resource TTLs and join indices
//  6. HTTP server: Chi router with API-key auth and Prometheus metrics
//
// Everything long-running is owned by a suture supervisor tree, so a
// crashed component restarts without taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file, built-in defaults.
// Required settings:
//
//	TRAKT_CLIENT_ID      Trakt application client id
//	TRAKT_CLIENT_SECRET  Trakt application client secret
//	TRAKT_REFRESH_TOKEN  seed refresh token (or TRAKT_ACCESS_TOKEN)
//	SECURITY_API_KEY     inbound API key, 16+ characters
//
// Rotated tokens are persisted to TOKENS_PATH (default /data/tokens.json)
// and override the seed values on subsequent starts.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests (10s timeout), then
// closes the cache store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/traktrelay/internal/api"
	"github.com/tomtom215/traktrelay/internal/cache"
	"github.com/tomtom215/traktrelay/internal/config"
	"github.com/tomtom215/traktrelay/internal/enrich"
	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/supervisor"
	"github.com/tomtom215/traktrelay/internal/supervisor/services"
	"github.com/tomtom215/traktrelay/internal/trakt"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("base_url", cfg.Trakt.BaseURL).
		Str("cache_dir", cfg.Cache.Dir).
		Str("listen", cfg.ListenAddr()).
		Msg("Configuration loaded")

	// Token manager persists rotated tokens so a restart does not burn the
	// single-use refresh token.
	tokenFile := config.NewTokenFile(config.TokensPath())
	tokens := trakt.NewTokenManager(trakt.TokenConfig{
		ClientID:     cfg.Trakt.ClientID,
		ClientSecret: cfg.Trakt.ClientSecret,
		AccessToken:  cfg.Trakt.AccessToken,
		RefreshToken: cfg.Trakt.RefreshToken,
		ExpiresAt:    cfg.Trakt.ExpiresAt,
	}, tokenFile)

	client := trakt.NewClient(trakt.ClientConfig{
		BaseURL:   cfg.Trakt.BaseURL,
		ClientID:  cfg.Trakt.ClientID,
		RateLimit: cfg.Trakt.RateLimit,
		Timeout:   cfg.Trakt.Timeout,
	}, tokens)

	// Durable tier is optional: an empty dir runs memory-only, losing
	// cached state on restart but nothing else.
	var durable *cache.Durable
	if cfg.Cache.Dir != "" {
		durable, err = cache.OpenDurable(cfg.Cache.Dir)
		if err != nil {
			logging.Error().Err(err).Str("dir", cfg.Cache.Dir).
				Msg("Durable cache unavailable, continuing memory-only")
			durable = nil
		}
	}
	store := cache.NewStore(cache.NewMemory(), durable)
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache store")
		}
	}()

	ttls := trakt.DefaultTTLPolicy()
	for cacheType, ttl := range cfg.Cache.TTLs {
		ttls[cacheType] = ttl
	}
	cached := trakt.NewCachedClient(client, store, ttls)
	enricher := enrich.NewService(cached, store)

	handler := api.NewHandler(cached, enricher, store, tokens)
	router := api.NewRouter(handler, api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
	}), cfg.Security.APIKey)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCacheService(services.NewJanitorService(store, cfg.Cache.SweepInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
