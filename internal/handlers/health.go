package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const statusCheckTimeout = 3 * time.Second

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	database Pinger
	broker   Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(database, broker Pinger) *HealthHandler {
	return &HealthHandler{database: database, broker: broker}
}

// RegisterHealthRoutes registers the banner, liveness and status routes
func (h *HealthHandler) RegisterHealthRoutes(e *echo.Echo, api *echo.Group) {
	e.GET("/", h.Home)
	e.GET("/health", h.HealthCheck)
	api.GET("/status", h.Status)
}

func (h *HealthHandler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "TrendPulse API v1.0"})
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "trendpulse",
	})
}

// Status checks the database and the task broker. It always answers 200 so
// platform health probes keep the instance alive while a dependency recovers.
func (h *HealthHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), statusCheckTimeout)
	defer cancel()

	response := echo.Map{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	ok := true

	if err := h.database.Ping(ctx); err != nil {
		ok = false
		response["database"] = "disconnected"
		response["database_error"] = err.Error()
	} else {
		response["database"] = "connected"
	}

	if err := h.broker.Ping(ctx); err != nil {
		ok = false
		response["broker"] = "disconnected"
		response["broker_error"] = err.Error()
	} else {
		response["broker"] = "connected"
	}

	response["status"] = "ok"
	if !ok {
		response["status"] = "degraded"
	}
	return c.JSON(http.StatusOK, response)
}
