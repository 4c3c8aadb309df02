package billing

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
	readGroup.GET("/billings", h.ListBillings)
	readGroup.GET("/billings/:id", h.GetBilling)

	writeGroup := api.Group("", auth.RequireRole("admin", "dentist", "reception"))
	writeGroup.POST("/billings", h.CreateBilling)
	writeGroup.PATCH("/billings/:id/claim-status", h.UpdateClaimStatus)
}

func (h *Handler) CreateBilling(c echo.Context) error {
	var rec Record
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRecord(c.Request().Context(), &rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetBilling(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "billing record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// ListBillings serves either one patient's billing history (patient_id) or a
// whole claim month (month=YYYY-MM).
func (h *Handler) ListBillings(c echo.Context) error {
	ctx := c.Request().Context()

	if month := c.QueryParam("month"); month != "" {
		recs, err := h.svc.ListMonth(ctx, month)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, recs)
	}

	pid, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id or month is required")
	}
	pg := pagination.FromContext(c)
	recs, total, err := h.svc.ListByPatient(ctx, pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateClaimStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateClaimStatus(c.Request().Context(), id, body.Status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": body.Status})
}
