package history

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medassist/internal/domain/profile"
	"github.com/ehr/medassist/pkg/pagination"
)

// ProfileSource yields the active profile session.
type ProfileSource interface {
	Active() (*profile.Session, error)
}

type Handler struct {
	svc      *Service
	profiles ProfileSource
}

func NewHandler(svc *Service, profiles ProfileSource) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/history", h.ListGrouped)
	api.GET("/history/counts", h.Counts)
	api.GET("/history/:id", h.GetEntry)
	api.POST("/history", h.CreateEntry)
	api.PUT("/history/:id", h.UpdateEntry)
	api.DELETE("/history/open", h.DeleteAllOpen)
	api.DELETE("/history/:id", h.DeleteEntry)
}

// profileID resolves the profile scope: an explicit insurance_number query
// parameter, else the active profile.
func (h *Handler) profileID(c echo.Context) (string, error) {
	if q := c.QueryParam("insurance_number"); q != "" {
		if err := profile.ValidateInsuranceNumber(q); err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return q, nil
	}
	sess, err := h.profiles.Active()
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return sess.Profile.InsuranceNumber, nil
}

func (h *Handler) ListGrouped(c echo.Context) error {
	filter, err := ParseFilter(c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	profileID, err := h.profileID(c)
	if err != nil {
		return err
	}
	groups, err := h.svc.ListGrouped(c.Request().Context(), profileID, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	page := pagination.Apply(groups, pg)
	if page == nil {
		page = []Group{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(groups), pg.Limit, pg.Offset))
}

type countsResponse struct {
	Counts
	Mode CountMode `json:"mode"`
}

func (h *Handler) Counts(c echo.Context) error {
	counts, err := h.svc.Counts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, countsResponse{Counts: counts, Mode: h.svc.CountMode()})
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "entry not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

type createRequest struct {
	Title   Title      `json:"title"`
	Content string     `json:"content"`
	Status  Status     `json:"status"`
	PairID  *uuid.UUID `json:"pair_id,omitempty"`
}

func (h *Handler) CreateEntry(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	profileID, err := h.profileID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Create(c.Request().Context(), NewEntry{
		ProfileID: profileID,
		Title:     req.Title,
		Content:   req.Content,
		Status:    req.Status,
		PairID:    req.PairID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

type updateRequest struct {
	Content string `json:"content"`
	Status  Status `json:"status"`
}

// UpdateEntry answers 204 for unknown ids: updates of missing entries are
// silently ignored.
func (h *Handler) UpdateEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, found, err := h.svc.Update(c.Request().Context(), id, req.Content, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !found {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteAllOpen(c echo.Context) error {
	n, err := h.svc.DeleteAllOpen(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}
