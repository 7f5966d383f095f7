package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const defaultTrendLimit = 100

// TrendHandler serves the read side of the trend store
type TrendHandler struct {
	trendRepository repositories.TrendRepository
}

// NewTrendHandler creates a new TrendHandler
func NewTrendHandler(trendRepo repositories.TrendRepository) *TrendHandler {
	return &TrendHandler{trendRepository: trendRepo}
}

// RegisterTrendRoutes registers trend listing and aggregate routes
func (h *TrendHandler) RegisterTrendRoutes(g *echo.Group) {
	g.GET("/trends", h.GetTrends)
	g.GET("/trends/:id", h.GetTrend)
	g.GET("/categories", h.GetCategories)
	g.GET("/platforms", h.GetPlatforms)
	g.GET("/stats", h.GetStats)
}

// TrendResponse is a trend with its tags flattened to names
type TrendResponse struct {
	ID          uint       `json:"id"`
	Platform    string     `json:"platform"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    *string    `json:"category"`
	Author      string     `json:"author"`
	URL         string     `json:"url"`
	Thumbnail   string     `json:"thumbnail"`
	Views       int64      `json:"views"`
	Likes       int64      `json:"likes"`
	Comments    int64      `json:"comments"`
	Volume      int64      `json:"volume"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toTrendResponse(t *models.Trend) TrendResponse {
	return TrendResponse{
		ID:          t.ID,
		Platform:    t.Platform,
		ExternalID:  t.ExternalID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Author:      t.Author,
		URL:         t.URL,
		Thumbnail:   t.Thumbnail,
		Views:       t.Views,
		Likes:       t.Likes,
		Comments:    t.Comments,
		Volume:      t.Volume,
		Tags:        t.TagNames(),
		PublishedAt: t.PublishedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// GetTrends returns a page of trends, newest first
func (h *TrendHandler) GetTrends(c echo.Context) error {
	query := models.TrendQuery{Limit: defaultTrendLimit}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(&query); err != nil {
		return err
	}

	trends, totalItems, err := h.trendRepository.ListTrends(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items := make([]TrendResponse, len(trends))
	for i := range trends {
		items[i] = toTrendResponse(&trends[i])
	}

	page := query.Skip/query.Limit + 1
	totalPages := int(math.Ceil(float64(totalItems) / float64(query.Limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"trends": items,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      totalItems,
			"itemsPerPage":    query.Limit,
			"hasNextPage":     int64(query.Skip+len(items)) < totalItems,
			"hasPreviousPage": query.Skip > 0,
		},
	})
}

// GetTrend returns a single trend by id
func (h *TrendHandler) GetTrend(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid trend ID")
	}

	trend, err := h.trendRepository.GetTrendByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repositories.ErrTrendNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Trend not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, toTrendResponse(trend))
}

// GetCategories returns the number of trends per category
func (h *TrendHandler) GetCategories(c echo.Context) error {
	counts, err := h.trendRepository.CountByCategory(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, nonNilCounts(counts))
}

// GetPlatforms returns the number of trends per platform
func (h *TrendHandler) GetPlatforms(c echo.Context) error {
	counts, err := h.trendRepository.CountByPlatform(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, nonNilCounts(counts))
}

// GetStats returns table sizes and the stored time range
func (h *TrendHandler) GetStats(c echo.Context) error {
	stats, err := h.trendRepository.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func nonNilCounts(counts []models.NameCount) []models.NameCount {
	if counts == nil {
		return []models.NameCount{}
	}
	return counts
}
