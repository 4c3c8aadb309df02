package procedure

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hakuto-dental/clinic-server/internal/platform/auth"
	"github.com/hakuto-dental/clinic-server/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "dentist", "reception"))
	readGroup.GET("/procedure-codes", h.ListCodes)
	readGroup.GET("/procedure-codes/:id", h.GetCode)
	readGroup.GET("/procedure-codes/resolve/:code", h.ResolveCode)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/procedure-codes", h.CreateCode)
	adminGroup.PUT("/procedure-codes/:id", h.UpdateCode)
}

func (h *Handler) CreateCode(c echo.Context) error {
	var code Code
	if err := c.Bind(&code); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCode(c.Request().Context(), &code); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, code)
}

func (h *Handler) GetCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	code, err := h.svc.GetCode(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "procedure code not found")
	}
	return c.JSON(http.StatusOK, code)
}

func (h *Handler) ListCodes(c echo.Context) error {
	pg := pagination.FromContext(c)
	codes, total, err := h.svc.ListCodes(c.Request().Context(), c.QueryParam("category"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(codes, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var code Code
	if err := c.Bind(&code); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	code.ID = id
	if err := h.svc.UpdateCode(c.Request().Context(), &code); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, code)
}

func (h *Handler) ResolveCode(c echo.Context) error {
	raw := c.Param("code")
	official, ok, err := h.svc.Resolve(c.Request().Context(), raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "code resolution failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"input":    raw,
		"official": official,
		"resolved": ok,
	})
}
