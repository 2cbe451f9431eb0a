// ABOUTME: This file wires the dashboard REST endpoints onto the echo router
// ABOUTME: Panel reads, the realtime counter, calendar view and cache admin

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"funnel-dashboard/models"
)

// PanelProvider serves the assembled funnel panels.
type PanelProvider interface {
	Discover(ctx context.Context, offset int) (models.DiscoverPanel, error)
	Buy(ctx context.Context, offset int) (models.BuyPanel, error)
	Use(ctx context.Context, offset int) (models.UsePanel, error)
	Renew(ctx context.Context, offset int) (models.RenewPanel, error)
	ContentCalendar(ctx context.Context, offset int) (models.CalendarPanel, error)
	ActiveUsers(ctx context.Context) (int, error)
}

// CacheAdmin exposes the cache operations the admin endpoint needs.
type CacheAdmin interface {
	Clear()
	Len() int
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PanelHandler serves the dashboard HTTP API.
type PanelHandler struct {
	panels     PanelProvider
	cache      CacheAdmin
	adminToken string
	logger     *slog.Logger
}

// NewPanelHandler creates the dashboard HTTP handler. An empty adminToken
// disables the cache-clear endpoint.
func NewPanelHandler(panels PanelProvider, cache CacheAdmin, adminToken string, logger *slog.Logger) *PanelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelHandler{
		panels:     panels,
		cache:      cache,
		adminToken: adminToken,
		logger:     logger,
	}
}

// Register mounts all routes on e.
func (h *PanelHandler) Register(e *echo.Echo) {
	e.GET("/v1/health", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/v1/panels/discover", h.panel(func(ctx context.Context, offset int) (any, error) {
		return h.panels.Discover(ctx, offset)
	}))
	e.GET("/v1/panels/buy", h.panel(func(ctx context.Context, offset int) (any, error) {
		return h.panels.Buy(ctx, offset)
	}))
	e.GET("/v1/panels/use", h.panel(func(ctx context.Context, offset int) (any, error) {
		return h.panels.Use(ctx, offset)
	}))
	e.GET("/v1/panels/renew", h.panel(func(ctx context.Context, offset int) (any, error) {
		return h.panels.Renew(ctx, offset)
	}))
	e.GET("/v1/content-calendar", h.panel(func(ctx context.Context, offset int) (any, error) {
		return h.panels.ContentCalendar(ctx, offset)
	}))

	e.GET("/v1/active-users", h.activeUsers)
	e.POST("/v1/cache/clear", h.clearCache)
}

func (h *PanelHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// panel adapts one panel builder into an echo handler with shared offset
// parsing and error handling.
func (h *PanelHandler) panel(build func(ctx context.Context, offset int) (any, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		offset, err := parseOffset(c.QueryParam("offset"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
		}

		panel, err := build(c.Request().Context(), offset)
		if err != nil {
			h.logger.Error("panel build failed", "path", c.Path(), "offset", offset, "error", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Message:   "panel temporarily unavailable",
				Timestamp: time.Now(),
			})
		}
		return c.JSON(http.StatusOK, panel)
	}
}

func (h *PanelHandler) activeUsers(c echo.Context) error {
	count, err := h.panels.ActiveUsers(c.Request().Context())
	if err != nil {
		h.logger.Error("active users fetch failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message:   "active users temporarily unavailable",
			Timestamp: time.Now(),
		})
	}
	return c.JSON(http.StatusOK, map[string]int{"active_users": count})
}

func (h *PanelHandler) clearCache(c echo.Context) error {
	if h.adminToken == "" {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Message:   "cache administration is disabled",
			Timestamp: time.Now(),
		})
	}
	if c.Request().Header.Get("X-Admin-Token") != h.adminToken {
		h.logger.Warn("cache clear rejected, bad admin token", "remote", c.RealIP())
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message:   "invalid admin token",
			Timestamp: time.Now(),
		})
	}

	evicted := h.cache.Len()
	h.cache.Clear()
	h.logger.Info("cache cleared via admin endpoint", "entries_evicted", evicted)
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "cleared",
		"entries_evicted": evicted,
	})
}

var errBadOffset = errors.New("offset must be a non-negative integer")

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, errBadOffset
	}
	return offset, nil
}
