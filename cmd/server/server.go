package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func runServe(ctx context.Context, configPath string) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	app, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer app.close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", app.config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.serve(ctx, ln)
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully within the configured timeout.
func (app *application) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting api server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		app.logger.Info("shutting down api server")
		timeout := time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	app.logger.Info("api server stopped")
	return nil
}
