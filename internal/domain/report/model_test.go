package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/tpa"
	"github.com/hms/hms/internal/domain/ward"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func bill(date, source string, total, paid int64) *billing.Bill {
	return &billing.Bill{
		ID: "BILL-" + date, Date: date, Source: source,
		TotalAmount: d(total), AmountPaid: d(paid), Status: billing.StatusFor(d(total), d(paid)),
	}
}

func sampleBills() []*billing.Bill {
	return []*billing.Bill{
		bill("2024-01-15", billing.SourceBilling, 1000, 1000),
		bill("2024-01-20", billing.SourceLaboratory, 500, 0),
		bill("2024-03-02", billing.SourceWardAdmission, 2000, 500),
		bill("2023-12-31", billing.SourceBilling, 300, 300),
	}
}

func TestMonthlySeries(t *testing.T) {
	points := MonthlySeries(sampleBills(), 2024)
	if len(points) != 12 {
		t.Fatalf("expected 12 months, got %d", len(points))
	}
	jan := points[0]
	if jan.Period != "2024-01" || jan.Bills != 2 {
		t.Errorf("unexpected January %+v", jan)
	}
	if !jan.Billed.Equal(d(1500)) || !jan.Collected.Equal(d(1000)) || !jan.Outstanding.Equal(d(500)) {
		t.Errorf("unexpected January totals %+v", jan)
	}
	if points[1].Bills != 0 || !points[1].Billed.IsZero() {
		t.Errorf("expected empty February, got %+v", points[1])
	}
	if !points[2].Outstanding.Equal(d(1500)) {
		t.Errorf("expected March outstanding 1500, got %s", points[2].Outstanding)
	}
}

func TestYearlySeries(t *testing.T) {
	points := YearlySeries(sampleBills())
	if len(points) != 2 {
		t.Fatalf("expected 2 years, got %d", len(points))
	}
	if points[0].Period != "2023" || !points[0].Billed.Equal(d(300)) {
		t.Errorf("unexpected 2023 %+v", points[0])
	}
	if points[1].Period != "2024" || !points[1].Billed.Equal(d(3500)) {
		t.Errorf("unexpected 2024 %+v", points[1])
	}
}

func TestSeries_FallsBackToCreatedAt(t *testing.T) {
	b := &billing.Bill{TotalAmount: d(100), AmountPaid: d(0), CreatedAt: time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)}
	points := MonthlySeries([]*billing.Bill{b}, 2024)
	if points[4].Bills != 1 {
		t.Errorf("expected bill in May, got %+v", points[4])
	}
}

func TestDailySeries(t *testing.T) {
	from := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	points := DailySeries(sampleBills(), from, to)
	if len(points) != 3 {
		t.Fatalf("expected 3 days, got %d", len(points))
	}
	if points[1].Period != "2024-01-15" || !points[1].Collected.Equal(d(1000)) {
		t.Errorf("unexpected day %+v", points[1])
	}
}

func TestBySource(t *testing.T) {
	out := BySource(sampleBills())
	if len(out) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(out))
	}
	for _, s := range out {
		if s.Source == billing.SourceBilling && (!s.Billed.Equal(d(1300)) || s.Bills != 2) {
			t.Errorf("unexpected billing source %+v", s)
		}
	}
}

func TestByPaymentMethod(t *testing.T) {
	withPayments := bill("2024-02-01", billing.SourceBilling, 1000, 700)
	withPayments.Payments = []billing.Payment{
		{ID: "P1", Amount: d(400), Method: "cash"},
		{ID: "P2", Amount: d(300), Method: "UPI"},
	}
	imported := bill("2024-02-02", billing.SourceBilling, 200, 200)
	imported.PaymentMethod = "upi"

	out := ByPaymentMethod([]*billing.Bill{withPayments, imported, bill("2024-02-03", billing.SourceBilling, 50, 0)})
	if len(out) != 2 {
		t.Fatalf("expected CASH and UPI, got %+v", out)
	}
	if out[0].Method != "CASH" || !out[0].Amount.Equal(d(400)) {
		t.Errorf("unexpected cash %+v", out[0])
	}
	if out[1].Method != "UPI" || !out[1].Amount.Equal(d(500)) || out[1].Payments != 2 {
		t.Errorf("unexpected upi %+v", out[1])
	}
}

func TestBuildDashboard(t *testing.T) {
	snap := Snapshot{
		TakenAt:  time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Patients: 42,
		Appointments: []*appointment.Appointment{
			{ID: "A1", Date: "2024-03-10", Status: appointment.StatusScheduled},
			{ID: "A2", Date: "2024-03-10", Status: appointment.StatusCancelled},
			{ID: "A3", Date: "2024-03-11", Status: appointment.StatusScheduled},
		},
		Bills:     sampleBills(),
		Occupancy: &ward.Summary{TotalBeds: 10, Occupied: 4, OccupancyPercentage: 40},
		Claims: []*tpa.Claim{
			{ID: "C1", Status: tpa.ClaimPending, ClaimAmount: d(1000), ApprovedAmount: d(0), DeductionAmount: d(0), PayableAmount: d(0)},
			{ID: "C2", Status: tpa.ClaimDisbursed, ClaimAmount: d(2000), ApprovedAmount: d(1800), DeductionAmount: d(200), PayableAmount: d(1600)},
		},
	}
	dash := BuildDashboard(snap)

	if dash.Patients != 42 {
		t.Errorf("expected 42 patients, got %d", dash.Patients)
	}
	if dash.TodayAppointments != 1 {
		t.Errorf("expected 1 appointment today, got %d", dash.TodayAppointments)
	}
	if !dash.Billing.Billed.Equal(d(3800)) || !dash.Billing.Collected.Equal(d(1800)) || !dash.Billing.Outstanding.Equal(d(2000)) {
		t.Errorf("unexpected billing totals %+v", dash.Billing)
	}
	if dash.Billing.Paid != 2 || dash.Billing.Partial != 1 || dash.Billing.Pending != 1 {
		t.Errorf("unexpected status counts %+v", dash.Billing)
	}
	if dash.ThisMonth.Bills != 1 || !dash.ThisMonth.Billed.Equal(d(2000)) {
		t.Errorf("unexpected this month %+v", dash.ThisMonth)
	}
	if dash.Occupancy.OccupancyPercentage != 40 {
		t.Errorf("expected occupancy 40, got %v", dash.Occupancy.OccupancyPercentage)
	}
	if dash.Claims.Total != 2 || dash.Claims.Pending != 1 || dash.Claims.Disbursed != 1 {
		t.Errorf("unexpected claim counts %+v", dash.Claims)
	}
	if !dash.Claims.Amounts.TotalClaimed.Equal(d(3000)) || !dash.Claims.Amounts.TotalDisbursed.Equal(d(1600)) {
		t.Errorf("unexpected claim amounts %+v", dash.Claims.Amounts)
	}
}

func TestBuildDashboard_Empty(t *testing.T) {
	dash := BuildDashboard(Snapshot{TakenAt: time.Now()})
	if dash.Occupancy == nil {
		t.Fatal("expected an empty occupancy summary")
	}
	if !dash.Billing.Billed.IsZero() || dash.Claims.Total != 0 {
		t.Errorf("expected zero totals, got %+v", dash)
	}
}

func TestFindMeasure(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if FindMeasure(m.ID) == nil {
			t.Errorf("expected to find measure %s", m.ID)
		}
		if m.Name == "" || m.Description == "" {
			t.Errorf("measure %s is missing a name or description", m.ID)
		}
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestMeasure_Evaluate(t *testing.T) {
	snap := Snapshot{TakenAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Bills: sampleBills()}
	r, err := FindMeasure("revenue-monthly").Evaluate(snap, map[string]string{"year": "2023", "ignored": "x"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	points, ok := r.Results.([]Point)
	if !ok || points[11].Period != "2023-12" || points[11].Bills != 1 {
		t.Errorf("unexpected results %+v", r.Results)
	}
	if _, ok := r.Parameters["ignored"]; ok {
		t.Error("expected undeclared parameters to be dropped")
	}

	if _, err := FindMeasure("revenue-monthly").Evaluate(snap, map[string]string{"year": "20x4"}); err == nil {
		t.Error("expected error for a malformed year")
	}
}
