package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/enrollment-lottery/internal/engine"
)

// writeError maps an engine error to an HTTP response.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, engine.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, engine.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrCapacityExceeded):
		status, code = http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, engine.ErrState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, engine.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, engine.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	}
	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed",
			slog.String("err", err.Error()),
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
		)
		return c.JSON(status, echo.Map{"error": code})
	}
	return c.JSON(status, echo.Map{"error": code, "message": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": msg})
}
