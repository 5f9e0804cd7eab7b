package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, app); err != nil {
		slog.Error("server failed", "error", err)
		cleanup()
		os.Exit(1)
	}
	cleanup()
	slog.Info("server stopped")
}

// run serves the API and the metrics endpoint until ctx is cancelled, then
// shuts both down within the configured timeout and flushes traces.
func run(ctx context.Context, app *App) error {
	cfg := app.Config
	app.Logger.Info("starting progression server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"cache_enabled", cfg.Cache.Enabled,
		"events_mode", cfg.Events.Mode)

	errCh := make(chan error, 2)
	go func() {
		app.Logger.Info("server listening", "address", cfg.Server.Address)
		errCh <- serve(app.Server)
	}()
	if app.Metrics.Server != nil {
		go func() {
			app.Logger.Info("metrics listening", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
			errCh <- serve(app.Metrics.Server)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	app.Logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("error during server shutdown", "error", err)
	}
	if app.Metrics.Server != nil {
		if err := app.Metrics.Server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("error during metrics shutdown", "error", err)
		}
	}
	if err := app.Tracing(shutdownCtx); err != nil {
		app.Logger.Warn("trace flush failed", "error", err)
	}
	return runErr
}
