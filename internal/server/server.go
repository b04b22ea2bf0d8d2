// Package server exposes the order ledger and stored carts over HTTP for
// back-office tools, together with /healthz and /metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/shashiranjanraj/cartsync/pkg/logger"
	"github.com/shashiranjanraj/cartsync/pkg/sse"
)

const shutdownGrace = 15 * time.Second

// Run serves h on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace. Open event streams are ended as soon as
// shutdown begins.
func Run(ctx context.Context, addr string, h http.Handler) error {
	drain := make(chan struct{})
	var once sync.Once

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext: func(net.Listener) context.Context {
			return sse.WithDrain(context.Background(), drain)
		},
	}
	srv.RegisterOnShutdown(func() { once.Do(func() { close(drain) }) })

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
