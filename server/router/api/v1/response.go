package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError maps a service error onto its HTTP status. Five-hundreds log
// the full chain; untyped internals additionally hide it from the client,
// while typed ones (bad gateway, unavailable, timeout) keep their message.
func respondError(c echo.Context, err error) error {
	// Bare store sentinels get their kind here so handlers can pass driver
	// errors straight through.
	if errs.KindOf(err) == errs.KindInternal {
		switch {
		case errors.Is(err, store.ErrNotFound):
			err = errs.New(errs.KindNotFound, err.Error())
		case errors.Is(err, store.ErrAlreadyExists):
			err = errs.New(errs.KindConflict, err.Error())
		}
	}
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		if errs.KindOf(err) == errs.KindInternal {
			return c.JSON(status, errorBody{Error: "internal server error"})
		}
	}
	return c.JSON(status, errorBody{Error: err.Error(), Kind: string(errs.KindOf(err))})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: message, Kind: string(errs.KindValidation)})
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errs.Newf(errs.KindValidation, "invalid id %q", c.Param("id"))
	}
	return int32(id), nil
}

// listWindow reads limit/offset query parameters with a capped default.
func listWindow(c echo.Context) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
