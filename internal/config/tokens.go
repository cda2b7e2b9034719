// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultTokensPath is where rotated OAuth tokens are persisted. Override
// with the TOKENS_PATH environment variable. Tokens live outside the main
// config file so the static config stays read-only at runtime.
const DefaultTokensPath = "/data/tokens.json"

// TokensPathEnvVar overrides the tokens file path when set.
const TokensPathEnvVar = "TOKENS_PATH"

// tokensFile is the on-disk shape of the persisted token pair.
type tokensFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokensPath returns the effective tokens file path.
func TokensPath() string {
	if p := os.Getenv(TokensPathEnvVar); p != "" {
		return p
	}
	return DefaultTokensPath
}

// applyTokensFile overlays the persisted token pair onto cfg. The file
// holds the most recent rotation, so it supersedes the static config; a
// missing file is not an error (first run).
func applyTokensFile(cfg *Config) error {
	raw, err := os.ReadFile(TokensPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tokens file: %w", err)
	}

	var tokens tokensFile
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return fmt.Errorf("parse tokens file %s: %w", TokensPath(), err)
	}
	if tokens.RefreshToken == "" {
		return nil
	}

	cfg.Trakt.AccessToken = tokens.AccessToken
	cfg.Trakt.RefreshToken = tokens.RefreshToken
	cfg.Trakt.ExpiresAt = tokens.ExpiresAt
	return nil
}

// TokenFile persists rotated token pairs to a JSON file with atomic
// replacement, so a crash mid-write never leaves a truncated file holding
// the only copy of a single-use refresh token.
type TokenFile struct {
	mu   sync.Mutex
	path string
}

// NewTokenFile returns a TokenFile writing to path; an empty path uses
// TokensPath().
func NewTokenFile(path string) *TokenFile {
	if path == "" {
		path = TokensPath()
	}
	return &TokenFile{path: path}
}

// SaveTokens writes the token pair durably. Satisfies the token manager's
// persister contract.
func (tf *TokenFile) SaveTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	tf.mu.Lock()
	defer tf.mu.Unlock()

	raw, err := json.MarshalIndent(tokensFile{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(tf.path), 0o700); err != nil {
		return fmt.Errorf("create tokens dir: %w", err)
	}

	tmp := tf.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write tokens file: %w", err)
	}
	if err := os.Rename(tmp, tf.path); err != nil {
		return fmt.Errorf("replace tokens file: %w", err)
	}
	return nil
}
