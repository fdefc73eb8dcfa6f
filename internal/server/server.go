// Package server runs the HTTP listener and the background loops of an App
// until the context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/orderdesk/internal/bootstrap"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Run serves HTTP on :AppPort alongside the hub, queue workers, scheduler and
// rate-limit sweeper. When ctx is cancelled it closes SSE streams, drains
// in-flight requests and waits for every loop to return.
func Run(ctx context.Context, app *bootstrap.App) error {
	srv := &http.Server{
		Addr:              ":" + app.Settings.AppPort,
		Handler:           app.Kernel.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return app.Queue.Start(gctx) })
	g.Go(func() error { return app.Scheduler.Start(gctx) })
	if app.Limiter != nil {
		g.Go(func() error {
			app.Limiter.Sweep(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server: listening", "addr", srv.Addr, "env", app.Settings.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server: shutting down")

		// SSE streams never end on their own; Shutdown would wait on them.
		app.Broker.Close()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Work runs only the queue workers and the scheduler, for deployments that
// process jobs apart from the HTTP process.
func Work(ctx context.Context, app *bootstrap.App) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Queue.Start(gctx) })
	g.Go(func() error { return app.Scheduler.Start(gctx) })
	return g.Wait()
}
