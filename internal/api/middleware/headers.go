// Package middleware holds echo middleware shared by the API routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vodsync/vodsync/internal/config"
)

// HeaderVersion carries the server version on every response.
const HeaderVersion = "X-Vodsync-Version"

// APIHeaders sets response headers for API clients. Catalog responses change
// with every refresh, so /api responses are never cached.
func APIHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set(HeaderVersion, config.Version)

			if strings.HasPrefix(c.Request().URL.Path, "/api") {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}
