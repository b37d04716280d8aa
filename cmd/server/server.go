package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to drain
// once a stop signal arrives. Pipeline workers drain separately in cleanup.
const shutdownTimeout = 10 * time.Second

// startHTTPServer serves the API until the process receives SIGINT or SIGTERM,
// then drains requests and runs application cleanup.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		app.logger.Info("HTTP server listening", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case sig := <-stop:
		app.logger.Info("Received shutdown signal", "signal", sig.String())
	case <-serverCtx.Done():
		app.logger.Info("Server context canceled, draining")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		app.logger.Error("Graceful shutdown failed", "error", shutdownErr)
	}

	// Workers stop and the pool closes even when a request refused to drain.
	app.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown: %w", shutdownErr)
	}

	app.logger.Info("Shutdown complete")
	return nil
}
