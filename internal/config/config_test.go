// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Trakt.ClientID = "client-id"
	cfg.Trakt.ClientSecret = "client-secret"
	cfg.Trakt.RefreshToken = "refresh-token"
	cfg.Security.APIKey = "0123456789abcdef0123"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.Trakt.ClientID = "" }},
		{"missing client secret", func(c *Config) { c.Trakt.ClientSecret = "" }},
		{"no tokens at all", func(c *Config) { c.Trakt.RefreshToken = ""; c.Trakt.AccessToken = "" }},
		{"missing api key", func(c *Config) { c.Security.APIKey = "" }},
		{"short api key", func(c *Config) { c.Security.APIKey = "short" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"sweep interval too small", func(c *Config) { c.Cache.SweepInterval = time.Millisecond }},
		{"negative ttl", func(c *Config) { c.Cache.TTLs = map[string]time.Duration{"history": -time.Minute} }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"TRAKT_CLIENT_ID", "trakt.client_id"},
		{"TRAKT_RATE_LIMIT", "trakt.rate_limit"},
		{"SERVER_PORT", "server.port"},
		{"SECURITY_API_KEY", "security.api_key"},
		{"CACHE_SWEEP_INTERVAL", "cache.sweep_interval"},
		{"LOGGING_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	tf := NewTokenFile(path)

	expiresAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := tf.SaveTokens("new-access", "new-refresh", expiresAt); err != nil {
		t.Fatalf("SaveTokens: %v", err)
	}

	t.Setenv(TokensPathEnvVar, path)
	cfg := validConfig()
	if err := applyTokensFile(cfg); err != nil {
		t.Fatalf("applyTokensFile: %v", err)
	}
	if cfg.Trakt.AccessToken != "new-access" || cfg.Trakt.RefreshToken != "new-refresh" {
		t.Errorf("tokens not applied: %+v", cfg.Trakt)
	}
	if !cfg.Trakt.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expires_at = %v, want %v", cfg.Trakt.ExpiresAt, expiresAt)
	}
}

func TestApplyTokensFileMissingIsNoop(t *testing.T) {
	t.Setenv(TokensPathEnvVar, filepath.Join(t.TempDir(), "absent.json"))
	cfg := validConfig()
	if err := applyTokensFile(cfg); err != nil {
		t.Errorf("missing tokens file must not error: %v", err)
	}
	if cfg.Trakt.RefreshToken != "refresh-token" {
		t.Errorf("config token overwritten by missing file")
	}
}

func TestTokenFileSurvivesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	tf := NewTokenFile(path)

	if err := tf.SaveTokens("a1", "r1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := tf.SaveTokens("a2", "r2", time.Now()); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "" {
		t.Fatal("tokens file empty after overwrite")
	}

	t.Setenv(TokensPathEnvVar, path)
	cfg := validConfig()
	if err := applyTokensFile(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Trakt.RefreshToken != "r2" {
		t.Errorf("refresh token = %q, want the latest rotation", cfg.Trakt.RefreshToken)
	}
}
