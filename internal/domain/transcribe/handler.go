package transcribe

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hakuto-dental/clinic-server/internal/platform/ai"
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
	// Drafting clinical notes is dentist work, like charting itself.
	group := api.Group("", auth.RequireRole("admin", "dentist"))
	group.POST("/transcribe-sessions", h.StartSession)
	group.GET("/transcribe-sessions", h.ListSessions)
	group.GET("/transcribe-sessions/:id", h.GetSession)
	group.POST("/transcribe-sessions/:id/draft", h.DraftNote)
	group.POST("/transcribe-sessions/:id/commit", h.CommitDraft)
	group.POST("/transcribe-sessions/:id/discard", h.DiscardSession)
}

// aiError maps upstream AI failures to 502 without leaking the provider's
// response body to the client.
func aiError(err error) error {
	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		return echo.NewHTTPError(http.StatusBadGateway, "transcription service unavailable")
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) StartSession(c echo.Context) error {
	pid, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	file, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read audio file")
	}
	defer src.Close()

	authorID := auth.UserIDFromContext(c.Request().Context())
	session, err := h.svc.StartSession(c.Request().Context(), pid, authorID, file.Filename, src)
	if err != nil {
		return aiError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	session, err := h.svc.GetSession(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) ListSessions(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	sessions, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(sessions, total, pg.Limit, pg.Offset))
}

func (h *Handler) DraftNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	session, err := h.svc.DraftNote(c.Request().Context(), id)
	if err != nil {
		return aiError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) CommitDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Draft *SOAPDraft `json:"draft"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.svc.CommitDraft(c.Request().Context(), id, body.Draft)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) DiscardSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	session, err := h.svc.DiscardSession(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, session)
}
