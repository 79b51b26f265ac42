package profile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/medassist/internal/platform/mockdata"
)

type Handler struct {
	svc *Selector
}

func NewHandler(svc *Selector) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/profile", h.Activate)
	api.GET("/profile", h.GetProfile)
	api.GET("/patient-record", h.GetPatientRecord)
	api.GET("/lab-values", h.GetLabValues)
}

type activateRequest struct {
	InsuranceNumber string `json:"insurance_number"`
}

func (h *Handler) Activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Activate(c.Request().Context(), req.InsuranceNumber)
	if err != nil {
		if errors.Is(err, ErrInvalidInsuranceNumber) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess.Profile)
}

func (h *Handler) GetProfile(c echo.Context) error {
	sess, err := h.active()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Profile)
}

// PatientRecord is the patient record view with pre-checks sorted newest first.
type PatientRecord struct {
	Profile     Profile             `json:"profile"`
	BirthDate   string              `json:"birth_date"`
	Address     string              `json:"address"`
	Phone       string              `json:"phone"`
	Allergies   string              `json:"allergies"`
	PreChecks   []mockdata.PreCheck `json:"pre_checks"`
	Conditions  []string            `json:"conditions"`
	Medications []string            `json:"medications"`
}

func (h *Handler) GetPatientRecord(c echo.Context) error {
	sess, err := h.active()
	if err != nil {
		return err
	}
	p := sess.Patient
	return c.JSON(http.StatusOK, PatientRecord{
		Profile:     sess.Profile,
		BirthDate:   p.BirthDate,
		Address:     p.Address,
		Phone:       p.Phone,
		Allergies:   p.Allergies,
		PreChecks:   sess.SortedPreChecks(),
		Conditions:  p.Conditions,
		Medications: p.Medications,
	})
}

func (h *Handler) GetLabValues(c echo.Context) error {
	sess, err := h.active()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Labs)
}

func (h *Handler) active() (*Session, error) {
	sess, err := h.svc.Active()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return sess, nil
}
