// ABOUTME: Health endpoint reporting database and cache connectivity
// ABOUTME: Degraded components are listed individually; the endpoint itself never errors
package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// pinger is a connectivity check on one dependency.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	db    pinger
	cache pinger
}

func NewHealthHandler(db, cache pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Check reports per-component status. The cache is best-effort so a cache
// failure degrades the report without failing it; the database is required.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx := c.Request().Context()

	components := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	status := "healthy"
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		components["database"] = "unreachable"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if err := h.cache.Ping(ctx); err != nil {
		components["cache"] = "unreachable"
		if status == "healthy" {
			status = "degraded"
		}
	}

	return c.JSON(code, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}
