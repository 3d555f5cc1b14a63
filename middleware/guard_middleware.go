// ABOUTME: Per-caller concurrency guard middleware for mutating routes
// ABOUTME: Denied callers get a 429 with a retry-after hint of one guard window
package middleware

import (
	"github.com/labstack/echo/v4"

	"goodnews/guard"
	apperrors "goodnews/utils/errors"
)

// GuardMiddleware applies the concurrency guard to a route group. The caller
// identity is the authenticated user ID; anonymous requests pass through
// inside the guard itself.
func GuardMiddleware(g *guard.ConcurrencyGuard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			operation := c.Request().Method + " " + c.Path()

			if !g.Admit(UserID(c), operation) {
				return apperrors.NewRateLimitError(
					"too many concurrent requests", "handler", "guard", operation,
					int(g.Window().Seconds()), nil)
			}

			return next(c)
		}
	}
}
