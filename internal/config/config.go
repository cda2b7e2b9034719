// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package config provides layered configuration for the proxy: built-in
// defaults, an optional YAML file, and environment variables, in rising
// order of precedence. It also persists rotated OAuth tokens, which are the
// one piece of config the process mutates at runtime.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Trakt    TraktConfig    `koanf:"trakt"`
	Server   ServerConfig   `koanf:"server"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TraktConfig holds the upstream API application credentials and the OAuth
// token pair. AccessToken/RefreshToken/ExpiresAt are seeded here and then
// maintained by the token manager via the tokens file.
type TraktConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	AccessToken  string        `koanf:"access_token"`
	RefreshToken string        `koanf:"refresh_token"`
	ExpiresAt    time.Time     `koanf:"expires_at"`
	BaseURL      string        `koanf:"base_url"`
	RateLimit    float64       `koanf:"rate_limit"` // outbound requests per second
	Timeout      time.Duration `koanf:"timeout"`
}

// ServerConfig holds the inbound HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// CacheConfig holds the cache tiers' settings. TTLs maps cache types
// (history, ratings, ...) to nominal TTLs, overriding the built-in
// per-resource defaults.
type CacheConfig struct {
	Dir           string                   `koanf:"dir"` // durable tier directory; empty disables it
	SweepInterval time.Duration            `koanf:"sweep_interval"`
	TTLs          map[string]time.Duration `koanf:"ttls"`
}

// SecurityConfig holds inbound auth and rate limiting.
type SecurityConfig struct {
	APIKey          string        `koanf:"api_key"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for settings the process cannot run
// without or cannot interpret.
func (c *Config) Validate() error {
	if c.Trakt.ClientID == "" {
		return fmt.Errorf("trakt.client_id is required")
	}
	if c.Trakt.ClientSecret == "" {
		return fmt.Errorf("trakt.client_secret is required")
	}
	if c.Trakt.RefreshToken == "" && c.Trakt.AccessToken == "" {
		return fmt.Errorf("trakt.access_token or trakt.refresh_token is required")
	}
	if c.Security.APIKey == "" {
		return fmt.Errorf("security.api_key is required")
	}
	if len(c.Security.APIKey) < 16 {
		return fmt.Errorf("security.api_key must be at least 16 characters")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Cache.SweepInterval < time.Second {
		return fmt.Errorf("cache.sweep_interval %s too small; minimum 1s", c.Cache.SweepInterval)
	}
	for cacheType, ttl := range c.Cache.TTLs {
		if ttl <= 0 {
			return fmt.Errorf("cache.ttls.%s must be positive, got %s", cacheType, ttl)
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q unknown (json or console)", c.Logging.Format)
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
