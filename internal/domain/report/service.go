package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/tpa"
	"github.com/hms/hms/internal/domain/ward"
	"github.com/hms/hms/internal/platform/apperr"
)

var ErrMeasureNotFound = fmt.Errorf("measure %w", apperr.ErrNotFound)

type BillSource interface {
	ListBills(ctx context.Context, f billing.Filter) ([]*billing.Bill, error)
}

type PatientSource interface {
	ListPatients(ctx context.Context, f patient.Filter) ([]*patient.Patient, error)
}

type AppointmentSource interface {
	List(ctx context.Context, f appointment.Filter) ([]*appointment.Appointment, error)
}

type OccupancySource interface {
	OccupancySummary(ctx context.Context) (*ward.Summary, error)
}

type ClaimSource interface {
	ListClaims(ctx context.Context, f tpa.ClaimFilter) ([]*tpa.Claim, error)
}

// Sources are the read sides the reports are derived from.
type Sources struct {
	Bills        BillSource
	Patients     PatientSource
	Appointments AppointmentSource
	Occupancy    OccupancySource
	Claims       ClaimSource
}

type Service struct {
	src    Sources
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(src Sources, logger zerolog.Logger) *Service {
	return &Service{
		src:    src,
		logger: logger.With().Str("component", "report").Logger(),
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Snapshot loads the current state of every source. A nil source
// contributes nothing.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: s.now().UTC()}
	var err error
	if s.src.Bills != nil {
		if snap.Bills, err = s.src.Bills.ListBills(ctx, billing.Filter{}); err != nil {
			return snap, fmt.Errorf("load bills: %w", err)
		}
	}
	if s.src.Patients != nil {
		patients, err := s.src.Patients.ListPatients(ctx, patient.Filter{})
		if err != nil {
			return snap, fmt.Errorf("load patients: %w", err)
		}
		snap.Patients = len(patients)
	}
	if s.src.Appointments != nil {
		today := appointment.Filter{Date: snap.TakenAt.Format(dateLayout)}
		if snap.Appointments, err = s.src.Appointments.List(ctx, today); err != nil {
			return snap, fmt.Errorf("load appointments: %w", err)
		}
	}
	if s.src.Occupancy != nil {
		if snap.Occupancy, err = s.src.Occupancy.OccupancySummary(ctx); err != nil {
			return snap, fmt.Errorf("load occupancy: %w", err)
		}
	}
	if s.src.Claims != nil {
		if snap.Claims, err = s.src.Claims.ListClaims(ctx, tpa.ClaimFilter{}); err != nil {
			return snap, fmt.Errorf("load claims: %w", err)
		}
	}
	return snap, nil
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(snap), nil
}

func (s *Service) bills(ctx context.Context) ([]*billing.Bill, error) {
	if s.src.Bills == nil {
		return nil, nil
	}
	return s.src.Bills.ListBills(ctx, billing.Filter{})
}

func (s *Service) MonthlyRevenue(ctx context.Context, year int) ([]Point, error) {
	bills, err := s.bills(ctx)
	if err != nil {
		return nil, err
	}
	return MonthlySeries(bills, year), nil
}

func (s *Service) YearlyRevenue(ctx context.Context) ([]Point, error) {
	bills, err := s.bills(ctx)
	if err != nil {
		return nil, err
	}
	return YearlySeries(bills), nil
}

// DailyRevenue covers the last days days, ending today.
func (s *Service) DailyRevenue(ctx context.Context, days int) ([]Point, error) {
	if days < 1 || days > 366 {
		return nil, apperr.Invalid("days must be between 1 and 366")
	}
	bills, err := s.bills(ctx)
	if err != nil {
		return nil, err
	}
	to := s.now().UTC()
	return DailySeries(bills, to.AddDate(0, 0, -(days-1)), to), nil
}

func (s *Service) RevenueBySource(ctx context.Context) ([]SourceRevenue, error) {
	bills, err := s.bills(ctx)
	if err != nil {
		return nil, err
	}
	return BySource(bills), nil
}

func (s *Service) RevenueByPaymentMethod(ctx context.Context) ([]MethodRevenue, error) {
	bills, err := s.bills(ctx)
	if err != nil {
		return nil, err
	}
	return ByPaymentMethod(bills), nil
}

func (s *Service) Evaluate(ctx context.Context, id string, params map[string]string) (*MeasureReport, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMeasureNotFound, id)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("measure", id).Msg("evaluating measure")
	return m.Evaluate(snap, params)
}
