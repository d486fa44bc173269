package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/sosmeet/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// Start runs the hub loop in the background. Handler() is usable afterwards;
// Run calls it itself.
func (s *Server) Start() {
	go s.hub.Run()
}

// Run starts the server on cfg.Port and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	slog.Info("SOS Meet relay running", "addr", ln.Addr().String(), "version", version.String())
	s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, ctx.Done())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Shutdown()
			return fmt.Errorf("server: serve: %w", err)
		}
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	s.Shutdown()
	return nil
}

// Shutdown closes every connection and the store.
func (s *Server) Shutdown() {
	if err := s.hub.Shutdown(shutdownTimeout); err != nil {
		slog.Warn("hub shutdown", "err", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Warn("store close", "err", err)
	}
}
