package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/handler"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
)

// RegisterOrganizer registers organizer endpoints under /v1.  Ownership of
// the event is checked in the handler; ADMIN bypasses it.
func RegisterOrganizer(e *echo.Echo, h *handler.OrganizerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin),
	)
	g.POST("/events", h.CreateEvent)
	g.GET("/events/:id/waitlist", h.ListWaitlist)
	g.POST("/events/:id/draw", h.Draw)
	g.POST("/events/:id/sweep", h.Sweep)
	g.GET("/events/:id/registrations", h.ListRegistrations)
	g.DELETE("/events/:id/registrations/:entrantId", h.CancelRegistration)
}
