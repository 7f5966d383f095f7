package router

import (
	"log/slog"

	"github.com/anonto42/trendpulse/backend/internal/handlers"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/internal/validators"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/labstack/echo/v4"
)

// Dependencies are the collaborators injected into the route handlers
type Dependencies struct {
	Trends    repositories.TrendRepository
	Broker    tasks.Broker
	Retention config.RetentionConfig
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	e.Validator = validators.New()

	api := e.Group("/api")

	// Health and dependency status
	healthHandler := handlers.NewHealthHandler(deps.Trends, deps.Broker)
	healthHandler.RegisterHealthRoutes(e, api)

	// Trend read routes
	trendHandler := handlers.NewTrendHandler(deps.Trends)
	trendHandler.RegisterTrendRoutes(api)
	slog.Info("[Router] Trend routes configured")

	// Manual triggers and task lookup
	taskHandler := handlers.NewTaskHandler(deps.Broker, deps.Retention)
	taskHandler.RegisterTaskRoutes(api)
	slog.Info("[Router] Task routes configured")

	slog.Info("[Router] All routes configured", slog.Int("routes", len(e.Routes())))
}
