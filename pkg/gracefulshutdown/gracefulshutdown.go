// Package gracefulshutdown coordinates process shutdown: a base context that
// is cancelled on SIGINT/SIGTERM, a readiness middleware that starts failing
// health checks once shutdown begins, and a helper that drains the HTTP
// server before exiting.
package gracefulshutdown

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

const drainTimeout = 30 * time.Second

var (
	baseCtx      context.Context = context.Background()
	cancelBase   context.CancelFunc
	shuttingDown atomic.Bool
)

// SubscribeForShutdown installs the signal handler. Call once, before any
// goroutine reads the base context.
func SubscribeForShutdown() {
	baseCtx, cancelBase = signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
}

// GetServerBaseContext returns the context cancelled on shutdown signals.
// Long-running goroutines (queue runners, pollers) should derive from it.
func GetServerBaseContext() context.Context {
	return baseCtx
}

// HealthCheckMiddleware fails readiness probes during shutdown so load
// balancers stop routing traffic before the listener closes.
func HealthCheckMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shuttingDown.Load() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		if next != nil {
			next.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// WaitForShutdown blocks until a shutdown signal arrives, then drains the
// server with a bounded timeout.
func WaitForShutdown(srv *http.Server) {
	<-baseCtx.Done()
	shuttingDown.Store(true)
	slog.Info("shutdown signal received, draining server")

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if cancelBase != nil {
		cancelBase()
	}
}
