package dictation

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medassist/internal/domain/profile"
	"github.com/ehr/medassist/internal/platform/export"
)

// ProfileSource yields the active profile session.
type ProfileSource interface {
	Active() (*profile.Session, error)
}

type Handler struct {
	sim      *Simulator
	profiles ProfileSource
}

func NewHandler(sim *Simulator, profiles ProfileSource) *Handler {
	return &Handler{sim: sim, profiles: profiles}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/dictations", h.Start)
	api.GET("/dictations/:id", h.Get)
	api.POST("/dictations/:id/save", h.Save)
	api.POST("/dictations/:id/send", h.Send)
	api.PUT("/dictations/:id/letter", h.EditLetter)
	api.GET("/dictations/:id/export", h.Export)
}

func (h *Handler) Start(c echo.Context) error {
	sess, err := h.profiles.Active()
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	t, err := h.sim.Start(c.Request().Context(), sess)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.sim.Get(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Save(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.sim.Save(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Send(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.sim.Send(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type editRequest struct {
	Text string `json:"text"`
}

func (h *Handler) EditLetter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.sim.Edit(c.Request().Context(), id, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Export(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var buf bytes.Buffer
	if err := h.sim.Export(id, &buf); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.LetterFilename))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, profile.ErrNoActiveProfile):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrProfileChanged), errors.Is(err, ErrEntryMissing):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrQueueFull):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
