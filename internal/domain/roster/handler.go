package roster

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/platform/auth"
	"github.com/callboard/callboard/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleStaff))
	staff.GET("/roster", h.List)
	staff.GET("/roster/export", h.Export)
	staff.GET("/roster/:id", h.Get)
	staff.POST("/sessions/:key/load-roster", h.LoadSession)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/roster", h.Create)
	admin.POST("/roster/import", h.Import)
	admin.PUT("/roster/:id", h.Update)
	admin.DELETE("/roster/:id", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoDayGroup), errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return callslot.HTTPError(err)
	}
}

type masterRequest struct {
	Facility     string  `json:"facility" validate:"required,max=64"`
	Name         string  `json:"name" validate:"required,max=255"`
	FuriganaName *string `json:"furigana_name" validate:"omitempty,max=255"`
	BedLabel     string  `json:"bed_label" validate:"required,max=32"`
	DayGroup     string  `json:"day_group" validate:"required"`
	Shift        string  `json:"shift" validate:"required,max=16"`
}

func (r *masterRequest) toModel() (*MasterPatient, error) {
	group, err := ParseDayGroup(r.DayGroup)
	if err != nil {
		return nil, err
	}
	return &MasterPatient{
		Facility:     r.Facility,
		Name:         r.Name,
		FuriganaName: r.FuriganaName,
		BedLabel:     r.BedLabel,
		DayGroup:     group,
		Shift:        r.Shift,
	}, nil
}

func bindMaster(c echo.Context) (*MasterPatient, error) {
	var req masterRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	m, err := req.toModel()
	if err != nil {
		return nil, httpError(err)
	}
	return m, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func filterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{Facility: c.QueryParam("facility"), Shift: c.QueryParam("shift")}
	if g := c.QueryParam("day_group"); g != "" {
		group, err := ParseDayGroup(g)
		if err != nil {
			return Filter{}, httpError(err)
		}
		f.DayGroup = group
	}
	return f, nil
}

func (h *Handler) Create(c echo.Context) error {
	m, err := bindMaster(c)
	if err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return httpError(err)
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, c.QueryParams(), total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := bindMaster(c)
	if err != nil {
		return err
	}
	m.ID = id
	if err := h.svc.Update(c.Request().Context(), m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LoadSession copies the scheduled masters into the session named by :key.
func (h *Handler) LoadSession(c echo.Context) error {
	key, err := callslot.ParseSessionKey(c.Param("key"))
	if err != nil {
		return callslot.HTTPError(err)
	}
	ctx := c.Request().Context()
	res, err := h.svc.LoadSession(ctx, key.Facility, key.Date, key.Shift, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Import(c echo.Context) error {
	facility := c.QueryParam("facility")
	if facility == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "facility is required")
	}
	replace, _ := strconv.ParseBool(c.QueryParam("replace"))

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	res, err := h.svc.Import(c.Request().Context(), facility, src, replace)
	if err != nil {
		return httpError(err)
	}
	if len(res.Errors) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Export(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	name := "roster.xlsx"
	if f.Facility != "" {
		name = fmt.Sprintf("roster_%s.xlsx", f.Facility)
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request().Context(), f, &buf); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
