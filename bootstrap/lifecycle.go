// ABOUTME: This file owns the application lifecycle from config load to graceful shutdown
// ABOUTME: Background loops and the HTTP server stop in reverse start order
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"goodnews/config"
	"goodnews/utils/logger"
)

// Run is the main application entry point. It initializes all dependencies,
// starts the server and background loops, then waits for a shutdown signal.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerConfig := logger.LoadConfigFromEnv()
	log := logger.New(loggerConfig)

	log.Info("Starting goodnews service",
		"log_level", loggerConfig.Level,
		"port", cfg.Server.Port,
		"ingest_interval", cfg.Ingest.Interval,
		"ingest_strategy", cfg.Ingest.Strategy)

	deps, cleanup, err := BuildDependencies(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build dependencies: %w", err)
	}
	defer cleanup()

	startBackground(ctx, deps, log)

	httpServer := NewHTTPServer(deps)
	StartHTTPServer(httpServer, cfg.Server.Port, log)

	log.Info("Goodnews service started successfully")
	waitForShutdown(httpServer, deps, log)

	return nil
}

func startBackground(ctx context.Context, deps *Dependencies, log *slog.Logger) {
	log.Info("Starting background loops")

	deps.Limiter.Start(ctx)
	deps.Guard.Start(ctx)
	deps.Ingestor.Start(ctx)
	deps.Sweeper.Start(ctx)
}

func waitForShutdown(httpServer interface{ Shutdown(context.Context) error }, deps *Dependencies, log *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down goodnews service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	deps.Ingestor.Stop()
	deps.Sweeper.Stop()
	deps.Guard.Stop()
	deps.Limiter.Stop()

	log.Info("Goodnews service stopped")
}
