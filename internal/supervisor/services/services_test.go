// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/traktrelay/internal/cache"
)

// stubHTTPServer is a test double for the HTTPServer interface.
type stubHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownCount atomic.Int32
	stopCh        chan struct{}
}

func newStubHTTPServer() *stubHTTPServer {
	return &stubHTTPServer{stopCh: make(chan struct{})}
}

func (s *stubHTTPServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stopCh
	return http.ErrServerClosed
}

func (s *stubHTTPServer) Shutdown(ctx context.Context) error {
	s.shutdownCount.Add(1)
	close(s.stopCh)
	return s.shutdownErr
}

func TestHTTPServerServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*HTTPServerService)(nil)
	var _ suture.Service = (*JanitorService)(nil)
}

func TestHTTPServerServiceShutsDownOnCancel(t *testing.T) {
	server := newStubHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if got := server.shutdownCount.Load(); got != 1 {
		t.Errorf("Shutdown called %d times, want 1", got)
	}
}

func TestHTTPServerServicePropagatesListenError(t *testing.T) {
	server := newStubHTTPServer()
	server.listenErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Serve returned %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceDefaultTimeout(t *testing.T) {
	svc := NewHTTPServerService(newStubHTTPServer(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s default", svc.shutdownTimeout)
	}
}

func TestJanitorServiceSweepsOnInterval(t *testing.T) {
	store := cache.NewStore(cache.NewMemory(), nil)
	t.Cleanup(func() { _ = store.Close() })

	store.Set("history:", []byte("{}"), cache.SetOptions{TTL: time.Millisecond})
	svc := NewJanitorService(store, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v, want context.DeadlineExceeded", err)
	}

	if store.Stats().TotalKeys != 0 {
		t.Errorf("expired entry survived the sweep")
	}
}

func TestJanitorServiceDefaultInterval(t *testing.T) {
	svc := NewJanitorService(cache.NewStore(cache.NewMemory(), nil), 0)
	if svc.interval != time.Minute {
		t.Errorf("interval = %v, want 1m default", svc.interval)
	}
}
