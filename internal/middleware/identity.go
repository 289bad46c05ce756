package middleware

import "github.com/labstack/echo/v4"

// Roles carried in the JWT role claim.
const (
	RoleEntrant   = "ENTRANT"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

// Context keys set by JWTAuth.
const (
	ctxSubject = "user_id"
	ctxRole    = "role"
)

// Subject returns the authenticated subject or "" when the request is
// anonymous.
func Subject(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}

// Role returns the authenticated role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}
