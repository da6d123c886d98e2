package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()
	m.BillCreated("ward-admission", 1500)
	m.BillCreated("ward-admission", 1500)
	m.PaymentRecorded("", 200)
	m.ClaimTransition("approved")

	if got := testutil.ToFloat64(m.billsCreated.WithLabelValues("ward-admission")); got != 2 {
		t.Errorf("expected 2 bills, got %v", got)
	}
	if got := testutil.ToFloat64(m.billedAmount.WithLabelValues("ward-admission")); got != 3000 {
		t.Errorf("expected 3000 billed, got %v", got)
	}
	if got := testutil.ToFloat64(m.paymentsTotal.WithLabelValues("unspecified")); got != 1 {
		t.Errorf("expected 1 unspecified payment, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.BillCreated("billing", 1)
	m.PaymentRecorded("cash", 1)
	m.WardEvent("admit", "ICU-001", "ICU", 1)
	m.ClaimTransition("rejected")
	m.ObserveRequest("GET", "/", "200", 0.1)
	m.StoreConflict()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.WardEvent("admit", "GEN-001", "GENERAL", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `hms_ward_occupied_beds{room_id="GEN-001",room_type="GENERAL"} 3`) {
		t.Error("expected occupied beds gauge in output")
	}
}
