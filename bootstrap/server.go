// ABOUTME: This file assembles the Echo HTTP server: middleware chain and route table
// ABOUTME: Engagement writes pass through auth resolution before the concurrency guard
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	appmiddleware "goodnews/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewHTTPServer creates and configures the Echo HTTP server.
func NewHTTPServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler for consistent error responses
	e.HTTPErrorHandler = appmiddleware.CustomHTTPErrorHandler(deps.Logger)

	// Middleware
	e.Use(appmiddleware.RequestIDMiddleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/v1/health"
		},
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			deps.Logger.InfoContext(ctx, "HTTP request completed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
				"error", v.Error)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(deps.Config.API.BodyLimit))

	requireAuth := deps.Auth.RequireAuth()
	optionalAuth := deps.Auth.OptionalAuth()
	guarded := appmiddleware.GuardMiddleware(deps.Guard)

	// API routes
	api := e.Group("/api/v1")
	api.GET("/health", deps.HealthHandler.Check)

	api.GET("/articles", deps.ArticleHandler.List)
	api.GET("/articles/trending", deps.ArticleHandler.Trending)

	// Auth runs before the guard so admission is keyed by user identity.
	api.POST("/articles/:id/view", deps.ArticleHandler.View, optionalAuth, guarded)
	api.POST("/articles/:id/share", deps.ArticleHandler.Share, optionalAuth, guarded)
	api.POST("/articles/:id/bookmark", deps.ArticleHandler.ToggleBookmark, requireAuth, guarded)

	api.GET("/bookmarks", deps.ArticleHandler.Bookmarks, requireAuth)

	api.POST("/ingest/run", deps.IngestHandler.Run, requireAuth, guarded)

	return e
}

// StartHTTPServer starts the HTTP server in a goroutine.
func StartHTTPServer(e *echo.Echo, port int, log *slog.Logger) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("Starting HTTP server", "port", port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()
}
