package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/handler"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
)

// RegisterEntrant registers entrant-scoped endpoints under /v1.  All routes
// require a valid JWT and the ENTRANT role; the mutating ones also pass
// through limiter.
func RegisterEntrant(e *echo.Echo, h *handler.EntrantHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleEntrant),
	)
	g.POST("/events/:id/waitlist", h.Join, limiter)
	g.DELETE("/events/:id/waitlist", h.Leave, limiter)
	g.DELETE("/events/:id/registration", h.CancelOwn, limiter)
	g.POST("/invitations/:id/respond", h.Respond, limiter)
	g.GET("/my-invitations", h.MyInvitations)
}
