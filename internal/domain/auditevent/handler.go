package auditevent

import (
	"net/http"
	"time"

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
	group := api.Group("", auth.RequireRole("admin"))
	group.GET("/audit-events", h.List)
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		UserID:   c.QueryParam("user_id"),
		Resource: c.QueryParam("resource"),
		Action:   c.QueryParam("action"),
	}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.From = t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		f.To = t.AddDate(0, 0, 1)
	}

	pg := pagination.FromContext(c)
	events, total, err := h.svc.Search(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}
