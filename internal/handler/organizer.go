package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/engine"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
	"github.com/iliyamo/enrollment-lottery/internal/model"
)

// OrganizerHandler serves the routes an organizer calls for the events
// they own.  ADMIN tokens may act on any event.
type OrganizerHandler struct {
	Engine *engine.Engine
	Log    *slog.Logger
}

// NewOrganizerHandler constructs an OrganizerHandler.
func NewOrganizerHandler(eng *engine.Engine, log *slog.Logger) *OrganizerHandler {
	if eng == nil {
		panic("nil engine passed to NewOrganizerHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &OrganizerHandler{Engine: eng, Log: log}
}

// owned loads the event in :id and checks that the caller owns it.
func (h *OrganizerHandler) owned(c echo.Context) (*model.Event, error) {
	ev, err := h.Engine.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if middleware.Role(c) != middleware.RoleAdmin && ev.OwnerID != middleware.Subject(c) {
		return nil, fmt.Errorf("%w: event %s belongs to another organizer", engine.ErrForbidden, ev.ID)
	}
	return ev, nil
}

type createEventRequest struct {
	Title                string            `json:"title"`
	Capacity             int               `json:"capacity"`
	WaitingListLimit     *int              `json:"waiting_list_limit"`
	RegistrationOpensAt  time.Time         `json:"registration_opens_at"`
	RegistrationClosesAt time.Time         `json:"registration_closes_at"`
	BackfillClosesAt     *time.Time        `json:"backfill_closes_at"`
	Status               model.EventStatus `json:"status"`
}

// CreateEvent handles POST /v1/events.  The caller becomes the owner.
func (h *OrganizerHandler) CreateEvent(c echo.Context) error {
	var body createEventRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := h.Engine.CreateEvent(c.Request().Context(), engine.NewEvent{
		OwnerID:              middleware.Subject(c),
		Title:                body.Title,
		Capacity:             body.Capacity,
		WaitingListLimit:     body.WaitingListLimit,
		RegistrationOpensAt:  body.RegistrationOpensAt,
		RegistrationClosesAt: body.RegistrationClosesAt,
		BackfillClosesAt:     body.BackfillClosesAt,
		Status:               model.EventStatus(strings.ToUpper(string(body.Status))),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// ListWaitlist handles GET /v1/events/:id/waitlist.
func (h *OrganizerHandler) ListWaitlist(c echo.Context) error {
	ev, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Engine.ListWaitlist(c.Request().Context(), ev.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"waiting": list})
}

// Draw handles POST /v1/events/:id/draw with {"count": n}.
func (h *OrganizerHandler) Draw(c echo.Context) error {
	var body struct {
		Count *int `json:"count"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Count == nil {
		return badRequest(c, "count is required")
	}
	ev, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Engine.DrawLottery(c.Request().Context(), ev.ID, *body.Count)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Sweep handles POST /v1/events/:id/sweep.
func (h *OrganizerHandler) Sweep(c echo.Context) error {
	ev, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Engine.SweepExpired(c.Request().Context(), ev.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListRegistrations handles GET /v1/events/:id/registrations?status=.
func (h *OrganizerHandler) ListRegistrations(c echo.Context) error {
	ev, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	status := model.RegistrationStatus(strings.ToUpper(c.QueryParam("status")))
	list, err := h.Engine.ListRegistrations(c.Request().Context(), ev.ID, status)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": list})
}

// CancelRegistration handles DELETE /v1/events/:id/registrations/:entrantId.
func (h *OrganizerHandler) CancelRegistration(c echo.Context) error {
	ev, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Engine.CancelRegistration(c.Request().Context(), ev.ID, c.Param("entrantId"), model.ByOrganizer)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
