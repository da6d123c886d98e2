package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrNotFound          = fmt.Errorf("appointment %w", apperr.ErrNotFound)
	ErrSlotTaken         = fmt.Errorf("%w: doctor already has an appointment at this time", apperr.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: only scheduled appointments can change status", apperr.ErrConflict)
)

// DoctorDirectory resolves the doctor an appointment is booked with.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id string) (*staff.Doctor, error)
}

type Service struct {
	appointments Repository
	tx           store.Transactor
	doctors      DoctorDirectory
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appointments Repository, tx store.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		tx:           tx,
		logger:       logger.With().Str("component", "appointment").Logger(),
		now:          time.Now,
	}
}

// SetDoctorDirectory makes booking check the doctor against the directory.
func (s *Service) SetDoctorDirectory(d DoctorDirectory) { s.doctors = d }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func validate(a *Appointment) error {
	errs := map[string]string{}
	if a.PatientID == "" {
		errs["patientId"] = "Patient is required"
	}
	if strings.TrimSpace(a.PatientName) == "" {
		errs["patientName"] = "Patient name is required"
	}
	if a.DoctorID == "" {
		errs["doctorId"] = "Doctor is required"
	}
	if _, err := time.Parse(dateLayout, a.Date); err != nil {
		errs["date"] = "Date must be YYYY-MM-DD"
	}
	if _, err := time.Parse(timeLayout, a.Time); err != nil {
		errs["time"] = "Time must be HH:MM"
	}
	return apperr.Fields(errs)
}

// Book schedules an appointment. A doctor can hold one scheduled
// appointment per date and time.
func (s *Service) Book(ctx context.Context, a *Appointment) (*Appointment, error) {
	if err := validate(a); err != nil {
		return nil, err
	}

	if s.doctors != nil {
		d, err := s.doctors.GetDoctor(ctx, a.DoctorID)
		if err != nil {
			return nil, err
		}
		if d.Status != "" && d.Status != staff.StatusActive {
			return nil, apperr.Invalid("doctor %s is %s", d.Name, d.Status)
		}
		day, _ := time.Parse(dateLayout, a.Date)
		if !d.AvailableOn(day.Weekday()) {
			return nil, apperr.Invalid("doctor %s is not available on %s", d.Name, day.Weekday())
		}
		a.DoctorName = d.Name
		if a.Department == "" {
			a.Department = d.Department
		}
	}

	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		booked, err := s.appointments.List(ctx, Filter{DoctorID: a.DoctorID, Date: a.Date, Status: StatusScheduled})
		if err != nil {
			return err
		}
		for _, b := range booked {
			if b.Time == a.Time {
				return fmt.Errorf("%w: %s %s", ErrSlotTaken, a.Date, a.Time)
			}
		}
		now := s.now().UTC()
		a.ID = store.NewID("APPT")
		a.Status = StatusScheduled
		a.CreatedAt = now
		a.UpdatedAt = now
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID).Str("doctor_id", a.DoctorID).Str("date", a.Date).Msg("appointment booked")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	return s.appointments.List(ctx, f)
}

// Today lists the appointments on the current date.
func (s *Service) Today(ctx context.Context) ([]*Appointment, error) {
	return s.appointments.List(ctx, Filter{Date: s.now().Format(dateLayout)})
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Appointment, error) {
	if status != StatusCompleted && status != StatusCancelled {
		return nil, apperr.Invalid("status must be %s or %s", StatusCompleted, StatusCancelled)
	}
	return s.appointments.Update(ctx, id, func(a *Appointment) error {
		if a.Status != StatusScheduled {
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, a.ID, a.Status)
		}
		a.Status = status
		a.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.appointments.Delete(ctx, id)
}
