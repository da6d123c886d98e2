package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/store"
)

func TestStatus(t *testing.T) {
	errRoomFull := fmt.Errorf("%w: room is full", ErrConflict)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", Invalid("patientName is required"), http.StatusBadRequest},
		{"wrapped invalid", fmt.Errorf("create: %w", Invalid("x")), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: bill", ErrNotFound), http.StatusNotFound},
		{"store not found", store.ErrNotFound, http.StatusNotFound},
		{"conflict sentinel", errRoomFull, http.StatusConflict},
		{"unauthorized", fmt.Errorf("login: %w", ErrUnauthorized), http.StatusUnauthorized},
		{"version conflict", store.ErrVersionConflict, http.StatusConflict},
		{"corrupt", store.ErrCorrupt, http.StatusInternalServerError},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestInvalid_MessageOnly(t *testing.T) {
	err := Invalid("amount must be greater than zero")
	if err.Error() != "amount must be greater than zero" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHTTP_HidesInternalErrors(t *testing.T) {
	err := HTTP(errors.New("pq: connection refused"))
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", he.Message)
	}
	if he.Internal == nil {
		t.Error("expected internal cause to be kept")
	}
}

func TestHTTP_PassesThroughHTTPError(t *testing.T) {
	in := echo.NewHTTPError(http.StatusForbidden, "nope")
	if HTTP(in) != in {
		t.Error("expected echo errors to pass through")
	}
	if HTTP(nil) != nil {
		t.Error("expected nil for nil")
	}
}

func TestFields(t *testing.T) {
	if Fields(nil) != nil {
		t.Fatal("expected nil for no field errors")
	}
	err := fmt.Errorf("create patient: %w", Fields(map[string]string{"phone": "Phone must be 10 digits", "email": "Invalid email format"}))
	if Status(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", Status(err))
	}
	if err.Error() != "create patient: validation failed: email: Invalid email format; phone: Phone must be 10 digits" {
		t.Errorf("unexpected message %q", err.Error())
	}

	he, ok := HTTP(err).(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", HTTP(err))
	}
	body, ok := he.Message.(map[string]any)
	if !ok || body["fields"].(map[string]string)["phone"] != "Phone must be 10 digits" {
		t.Errorf("expected field errors in the response body, got %v", he.Message)
	}
}
