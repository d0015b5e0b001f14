package layout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/callboard/callboard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/layouts/:facility", h.Get, auth.RequireRole(auth.RoleViewer, auth.RoleStaff))

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.PUT("/layouts/:facility", h.Replace)
	admin.DELETE("/layouts/:facility/beds/:bed", h.DeleteBed)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Get(c echo.Context) error {
	l, err := h.svc.Get(c.Request().Context(), c.Param("facility"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Replace(c echo.Context) error {
	var l Layout
	if err := json.NewDecoder(c.Request().Body).Decode(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be an object of bed label to {x, y}")
	}
	if err := h.svc.Replace(c.Request().Context(), c.Param("facility"), l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteBed(c echo.Context) error {
	if err := h.svc.DeleteBed(c.Request().Context(), c.Param("facility"), c.Param("bed")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
