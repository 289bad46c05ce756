package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/engine"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
	"github.com/iliyamo/enrollment-lottery/internal/model"
)

// EntrantHandler serves the routes an entrant calls for themselves.  The
// entrant id always comes from the token subject, never from the request.
type EntrantHandler struct {
	Engine *engine.Engine
	Log    *slog.Logger
}

// NewEntrantHandler constructs an EntrantHandler.
func NewEntrantHandler(eng *engine.Engine, log *slog.Logger) *EntrantHandler {
	if eng == nil {
		panic("nil engine passed to NewEntrantHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EntrantHandler{Engine: eng, Log: log}
}

// GetEvent handles GET /v1/events/:id.
func (h *EntrantHandler) GetEvent(c echo.Context) error {
	ev, err := h.Engine.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Join handles POST /v1/events/:id/waitlist.
func (h *EntrantHandler) Join(c echo.Context) error {
	entry, err := h.Engine.Join(c.Request().Context(), c.Param("id"), middleware.Subject(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Leave handles DELETE /v1/events/:id/waitlist.
func (h *EntrantHandler) Leave(c echo.Context) error {
	entry, err := h.Engine.Leave(c.Request().Context(), c.Param("id"), middleware.Subject(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// Respond handles POST /v1/invitations/:id/respond with {"accept": bool}.
// A forced expiry (accepted too late for a free slot) is a 200 with
// outcome FORCED_EXPIRED, not an error.
func (h *EntrantHandler) Respond(c echo.Context) error {
	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Accept == nil {
		return badRequest(c, "accept is required")
	}
	resp, err := h.Engine.RespondToInvitation(c.Request().Context(), c.Param("id"), middleware.Subject(c), *body.Accept)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelOwn handles DELETE /v1/events/:id/registration.
func (h *EntrantHandler) CancelOwn(c echo.Context) error {
	res, err := h.Engine.CancelRegistration(c.Request().Context(), c.Param("id"), middleware.Subject(c), model.ByEntrant)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// MyInvitations handles GET /v1/my-invitations.
func (h *EntrantHandler) MyInvitations(c echo.Context) error {
	list, err := h.Engine.ListInvitations(c.Request().Context(), middleware.Subject(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"invitations": list})
}
