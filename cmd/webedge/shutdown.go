package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/observability"
)

// run builds the application and serves until ctx is cancelled or the
// server fails.
func run(ctx context.Context, s *config.Settings, logger observability.Logger) error {
	logger.Info("starting webedge",
		observability.String("version", version),
		observability.String("config", s.ConfigPath),
		observability.String("listen", s.ListenAddr),
	)

	app, err := newApplication(ctx, s, logger)
	if err != nil {
		return err
	}
	return app.serve(ctx)
}

// serve runs the server and the config watcher, then shuts down.
func (a *application) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(ctx)
	}()

	a.startConfigWatcher(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
		shutdownErr := a.shutdown()
		return errors.Join(<-errCh, shutdownErr)
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("server stopped unexpectedly", observability.Error(serveErr))
		}
	}

	return errors.Join(serveErr, a.shutdown())
}

// shutdown stops the watcher, the server and the tracer in that order.
func (a *application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.settings.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}

	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}

	a.logger.Info("webedge stopped")
	return errors.Join(errs...)
}
