package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/tpa"
	"github.com/hms/hms/internal/domain/ward"
	"github.com/hms/hms/internal/platform/apperr"
)

type fakeSources struct {
	bills        []*billing.Bill
	patients     []*patient.Patient
	appointments []*appointment.Appointment
	gotFilter    appointment.Filter
	summary      *ward.Summary
	claims       []*tpa.Claim
	err          error
}

func (f *fakeSources) ListBills(ctx context.Context, _ billing.Filter) ([]*billing.Bill, error) {
	return f.bills, f.err
}

func (f *fakeSources) ListPatients(ctx context.Context, _ patient.Filter) ([]*patient.Patient, error) {
	return f.patients, nil
}

func (f *fakeSources) List(ctx context.Context, flt appointment.Filter) ([]*appointment.Appointment, error) {
	f.gotFilter = flt
	return f.appointments, nil
}

func (f *fakeSources) OccupancySummary(ctx context.Context) (*ward.Summary, error) {
	return f.summary, nil
}

func (f *fakeSources) ListClaims(ctx context.Context, _ tpa.ClaimFilter) ([]*tpa.Claim, error) {
	return f.claims, nil
}

func newTestService(f *fakeSources) *Service {
	svc := NewService(Sources{Bills: f, Patients: f, Appointments: f, Occupancy: f, Claims: f}, zerolog.Nop())
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) })
	return svc
}

func TestService_Dashboard(t *testing.T) {
	f := &fakeSources{
		bills:        sampleBills(),
		patients:     []*patient.Patient{{ID: "P1"}, {ID: "P2"}},
		appointments: []*appointment.Appointment{{ID: "A1", Date: "2024-03-10", Status: appointment.StatusScheduled}},
		summary:      &ward.Summary{TotalBeds: 4, Occupied: 1},
	}
	dash, err := newTestService(f).Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if f.gotFilter.Date != "2024-03-10" {
		t.Errorf("expected appointments filtered to today, got %q", f.gotFilter.Date)
	}
	if dash.Patients != 2 || dash.TodayAppointments != 1 {
		t.Errorf("unexpected dashboard %+v", dash)
	}
	if dash.Occupancy.TotalBeds != 4 {
		t.Errorf("expected occupancy from ward summary, got %+v", dash.Occupancy)
	}
}

func TestService_PartialSources(t *testing.T) {
	f := &fakeSources{bills: sampleBills()}
	svc := NewService(Sources{Bills: f}, zerolog.Nop())
	dash, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.Billing.Bills != 4 || dash.Patients != 0 {
		t.Errorf("unexpected dashboard %+v", dash)
	}
}

func TestService_SourceError(t *testing.T) {
	f := &fakeSources{err: errors.New("store offline")}
	if _, err := newTestService(f).Dashboard(context.Background()); err == nil {
		t.Error("expected source error to propagate")
	}
}

func TestService_DailyRevenue(t *testing.T) {
	svc := newTestService(&fakeSources{bills: sampleBills()})
	points, err := svc.DailyRevenue(context.Background(), 10)
	if err != nil {
		t.Fatalf("DailyRevenue: %v", err)
	}
	if len(points) != 10 || points[9].Period != "2024-03-10" {
		t.Errorf("unexpected window %+v", points)
	}
	if points[1].Period != "2024-03-02" || points[1].Bills != 1 {
		t.Errorf("expected the March 2 bill, got %+v", points[1])
	}
	if _, err := svc.DailyRevenue(context.Background(), 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid for zero days, got %v", err)
	}
}

func TestService_Evaluate(t *testing.T) {
	svc := newTestService(&fakeSources{bills: sampleBills()})
	r, err := svc.Evaluate(context.Background(), "revenue-yearly", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.MeasureName != "Yearly Revenue" {
		t.Errorf("unexpected report %+v", r)
	}
	if _, err := svc.Evaluate(context.Background(), "nope", nil); !errors.Is(err, ErrMeasureNotFound) {
		t.Errorf("expected measure not found, got %v", err)
	}
}
