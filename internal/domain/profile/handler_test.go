package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	s, _ := newTestSelector(t, true)
	return NewHandler(s), echo.New()
}

func TestHandler_Activate(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"insurance_number":"123456789"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Activate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var p Profile
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.InsuranceNumber != "123456789" {
		t.Errorf("expected insurance number in response, got %q", p.InsuranceNumber)
	}
}

func TestHandler_Activate_BadNumber(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"insurance_number":"12-34"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Activate(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestHandler_GetProfile_NotActive(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GetProfile(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
}

func TestHandler_PatientRecordAndLabs(t *testing.T) {
	h, e := newTestHandler(t)
	if _, err := h.svc.Activate(context.Background(), "123456789"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.GetPatientRecord(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rec1 PatientRecord
	json.Unmarshal(rec.Body.Bytes(), &rec1)
	if rec1.Profile.InsuranceNumber != "123456789" {
		t.Errorf("expected profile in record, got %+v", rec1.Profile)
	}
	if len(rec1.PreChecks) == 0 || rec1.PreChecks[0].Date != "20.03.2023" {
		t.Errorf("expected newest pre-check first, got %+v", rec1.PreChecks)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	if err := h.GetLabValues(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Leukozyten") {
		t.Errorf("expected lab values in body, got %s", rec.Body.String())
	}
}
