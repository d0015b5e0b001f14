package callslot

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	// Read endpoints – every signed-in role
	readGroup := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleStaff))
	readGroup.GET("/sessions/:key/slots", h.ListSession)
	readGroup.GET("/slots/:id", h.GetSlot)

	// Write endpoints – staff and admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleStaff))
	writeGroup.POST("/sessions/:key/slots", h.CreateSlot)
	writeGroup.PATCH("/slots/:id/status", h.UpdateStatus)
	writeGroup.PUT("/slots/:id", h.UpdateSlot)
	writeGroup.DELETE("/slots/:id", h.DeleteSlot)
	writeGroup.DELETE("/sessions/:key/slots", h.ClearSession)
}

// HTTPError maps package errors onto HTTP status codes.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidSessionKey), errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type createRequest struct {
	Name         string  `json:"name" validate:"required,max=255"`
	FuriganaName *string `json:"furigana_name" validate:"omitempty,max=255"`
	BedLabel     string  `json:"bed_label" validate:"required,max=32"`
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	slot := &Slot{Name: req.Name, FuriganaName: req.FuriganaName, BedLabel: req.BedLabel}
	if err := h.svc.Create(ctx, c.Param("key"), slot, auth.UserIDFromContext(ctx)); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	slot, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) ListSession(c echo.Context) error {
	slots, err := h.svc.ListSession(c.Request().Context(), c.Param("key"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		return HTTPError(err)
	}

	ctx := c.Request().Context()
	slot, err := h.svc.Transition(ctx, id, target, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var upd DisplayUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	slot, err := h.svc.UpdateDisplay(ctx, id, upd, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClearSession(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.ClearSession(ctx, c.Param("key"), auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}
