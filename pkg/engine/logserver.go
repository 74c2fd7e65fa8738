package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const logServerShutdownTimeout = 5 * time.Second

// serveLogs binds addr and serves h until ctx is cancelled, then shuts down
// gracefully. bound receives the resolved listener address.
func serveLogs(ctx context.Context, addr string, h http.Handler, log *slog.Logger, bound func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("engine: logs listen %s: %w", addr, err)
	}
	if bound != nil {
		bound(listener.Addr())
	}

	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("log stream listening", "address", listener.Addr().String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if err != nil {
			return fmt.Errorf("engine: logs serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), logServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("engine: logs shutdown: %w", err)
	}

	return nil
}
