package receiptcheck

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hakuto-dental/clinic-server/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("admin", "dentist", "reception"))
	group.POST("/receipt-checks", h.RunCheck)
}

// RunCheck validates a claim month or an explicit billing-record set.
// Verdicts are the response payload; rule violations are data, not HTTP
// errors.
func (h *Handler) RunCheck(c echo.Context) error {
	var body struct {
		Month      string   `json:"month"`
		BillingIDs []string `json:"billing_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	if len(body.BillingIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(body.BillingIDs))
		for _, raw := range body.BillingIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid billing id: "+raw)
			}
			ids = append(ids, id)
		}
		verdicts, err := h.svc.CheckRecords(ctx, ids)
		if err != nil {
			return checkError(err)
		}
		return c.JSON(http.StatusOK, verdicts)
	}

	if body.Month == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "month or billing_ids is required")
	}
	verdicts, err := h.svc.CheckMonth(ctx, body.Month)
	if err != nil {
		return checkError(err)
	}
	return c.JSON(http.StatusOK, verdicts)
}

// checkError maps caller mistakes to 400 and keeps reference-data failures
// behind a generic 500.
func checkError(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "receipt check failed")
}
