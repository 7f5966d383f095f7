package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/labstack/echo/v4"
)

// TaskHandler triggers background tasks and reports their results
type TaskHandler struct {
	broker    tasks.Broker
	retention config.RetentionConfig
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(broker tasks.Broker, retention config.RetentionConfig) *TaskHandler {
	return &TaskHandler{broker: broker, retention: retention}
}

// RegisterTaskRoutes registers the manual trigger and task lookup routes
func (h *TaskHandler) RegisterTaskRoutes(g *echo.Group) {
	g.POST("/fetch-trends", h.FetchTrends)
	g.POST("/cleanup", h.Cleanup)
	g.GET("/tasks/:id", h.GetTask)
}

// FetchTrends enqueues fetch_all_trends
func (h *TaskHandler) FetchTrends(c echo.Context) error {
	task, err := tasks.Submit(c.Request().Context(), h.broker, tasks.FetchAllTrends, nil)
	if err != nil {
		slog.Error("[API] Failed to enqueue fetch", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Task queue unavailable")
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "Trend fetch started",
		"task_id": task.ID,
	})
}

// Cleanup enqueues clean_old_trends. Thresholds come from the query string or
// a JSON body; missing ones fall back to the configured retention.
func (h *TaskHandler) Cleanup(c echo.Context) error {
	req := models.CleanupRequest{
		MaxAgeDays:            h.retention.MaxAgeDays,
		MaxRecordsPerPlatform: h.retention.MaxRecordsPerPlatform,
	}
	binder := &echo.DefaultBinder{}
	if err := binder.BindQueryParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if err := binder.BindBody(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	params := tasks.CleanupParams{
		MaxAgeDays:            req.MaxAgeDays,
		MaxRecordsPerPlatform: req.MaxRecordsPerPlatform,
	}
	task, err := tasks.Submit(c.Request().Context(), h.broker, tasks.CleanOldTrends, params)
	if err != nil {
		slog.Error("[API] Failed to enqueue cleanup", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Task queue unavailable")
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"message":                  "Cleanup started",
		"task_id":                  task.ID,
		"max_age_days":             params.MaxAgeDays,
		"max_records_per_platform": params.MaxRecordsPerPlatform,
	})
}

// GetTask returns the stored state of a task
func (h *TaskHandler) GetTask(c echo.Context) error {
	result, err := h.broker.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tasks.ErrResultNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
