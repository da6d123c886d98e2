package tpa

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func jsonContext(e *echo.Echo, method, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func TestHandler_ApproveClaim(t *testing.T) {
	f := newFixture(t)
	cl := f.claim(t, 1000)
	h, e := NewHandler(f.svc), echo.New()

	c, rec := jsonContext(e, http.MethodPost, `{"approvedAmount":800,"deductionAmount":100,"remarks":"ok"}`, "id", cl.ID)
	if err := h.ApproveClaim(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["payableAmount"] != float64(700) || got["status"] != ClaimApproved {
		t.Errorf("unexpected response %v", got)
	}

	c, _ = jsonContext(e, http.MethodPost, `{"approvedAmount":1}`, "id", cl.ID)
	err := h.ApproveClaim(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409 approving twice, got %v", err)
	}
}

func TestHandler_AddClaim_BadPolicy(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	c, _ := jsonContext(e, http.MethodPost, `{"policyId":"POL-NOPE","claimAmount":100}`)
	err := h.AddClaim(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GenerateBill_NoClaims(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	c, _ := jsonContext(e, http.MethodPost, `{"tpaId":"`+f.tpa.ID+`","claimIds":["CLM-NOPE"],"billingPeriod":"2024-03"}`)
	err := h.GenerateBill(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListClaims(t *testing.T) {
	f := newFixture(t)
	f.claim(t, 100)
	f.claim(t, 200)
	h, e := NewHandler(f.svc), echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?status=pending&limit=1", nil)
	rec := httptest.NewRecorder()
	if err := h.ListClaims(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		Data    []Claim `json:"data"`
		Total   int     `json:"total"`
		HasMore bool    `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 2 || len(page.Data) != 1 || !page.HasMore {
		t.Errorf("unexpected page total=%d len=%d has_more=%v", page.Total, len(page.Data), page.HasMore)
	}
}

func TestHandler_UploadAndDownloadDocument(t *testing.T) {
	f := newFixture(t)
	cl := f.claim(t, 1000)
	h, e := NewHandler(f.svc), echo.New()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="bill.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	part, _ := mw.CreatePart(hdr)
	part.Write([]byte("%PDF-1.7 claim"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID)

	if err := h.UploadDocument(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var doc Document
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if doc.Name != "bill.pdf" || doc.ContentType != "application/pdf" {
		t.Errorf("unexpected document %+v", doc)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id", "docId")
	c.SetParamValues(cl.ID, doc.ID)
	if err := h.DownloadDocument(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "%PDF-1.7 claim" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", rec.Header().Get(echo.HeaderContentType))
	}
}

func TestHandler_UploadDocument_MissingFile(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	c, _ := jsonContext(e, http.MethodPost, `{}`, "id", "CLM-1")
	err := h.UploadDocument(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
