package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/app"
	"github.com/anonto42/trendpulse/backend/internal/logging"
	"github.com/anonto42/trendpulse/backend/internal/router"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/labstack/echo/v4"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	config.LoadEnv()
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("[Server] Exiting", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run owns the database and broker so they are released on every return path.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database and broker
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	return serve(ctx, a, tasks.DefaultSchedule(cfg.Retention))
}

// serve runs the worker, scheduler and HTTP API until ctx ends or the
// listener fails.
func serve(ctx context.Context, a *app.App, schedule []tasks.ScheduleEntry) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	cfg := a.Config

	// Periodic schedule
	scheduler, err := tasks.NewScheduler(ctx, a.Broker, schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	// Background worker
	worker := a.Worker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			slog.Error("[Server] Worker stopped", slog.String("error", err.Error()))
		}
	}()
	scheduler.Start()

	// Seed an empty or stale database right away
	report := a.Orchestrator.CheckMissed(ctx)
	slog.Info("[Server] Startup check", slog.Bool("triggered", report.Triggered), slog.String("reason", report.Reason))

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	config.SetupMiddleware(e, cfg)
	router.SetupRoutes(e, router.Dependencies{
		Trends:    a.Trends,
		Broker:    a.Broker,
		Retention: cfg.Retention,
	})

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("[Server] Listening", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Server] Shutdown error", slog.String("error", err.Error()))
	}
	scheduler.Stop()
	<-workerDone

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	slog.Info("[Server] Stopped")
	return nil
}
