package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/handler"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// db may be nil when the service runs on the in-memory store.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterShared registers routes open to every authenticated role.
func RegisterShared(e *echo.Echo, h *handler.EntrantHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.GET("/events/:id", h.GetEvent)
}
