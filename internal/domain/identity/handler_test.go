package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/store"
)

func TestHandler_Login(t *testing.T) {
	svc := newTestService(store.NewMemory())
	createNurse(t, svc)
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"priya@hospital.com","password":"ward-secret"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("expected password hash to be omitted from the response")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"priya@hospital.com","password":"nope-nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Login(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_MyPermissions(t *testing.T) {
	h, e := NewHandler(newTestService(store.NewMemory())), echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), "u1", "acc@hospital.com", []string{auth.RoleAccountant}))
	rec := httptest.NewRecorder()

	if err := h.MyPermissions(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), auth.PermViewReports) {
		t.Errorf("expected %s in %s", auth.PermViewReports, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), auth.PermManageUsers) {
		t.Errorf("expected no %s for an accountant", auth.PermManageUsers)
	}
}

func TestHandler_Me(t *testing.T) {
	svc := newTestService(store.NewMemory())
	u := createNurse(t, svc)
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), u.ID, u.Email, []string{u.Role}))
	rec := httptest.NewRecorder()
	if err := h.Me(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Priya Nair"`) {
		t.Errorf("expected stored user in response, got %s", rec.Body.String())
	}
}

func TestHandler_SetActive_RequiresField(t *testing.T) {
	h, e := NewHandler(newTestService(store.NewMemory())), echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("USR-1")

	err := h.SetActive(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
