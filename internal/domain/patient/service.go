package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrNotFound      = fmt.Errorf("patient %w", apperr.ErrNotFound)
	ErrVisitNotFound = fmt.Errorf("visit %w", apperr.ErrNotFound)
)

type Service struct {
	patients PatientRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(patients PatientRepository, logger zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		logger:   logger.With().Str("component", "patient").Logger(),
		now:      time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	now := s.now().UTC()
	if err := apperr.Fields(p.Validate(now)); err != nil {
		return nil, err
	}
	p.normalize()
	p.ID = store.NewID("PAT")
	p.RegistrationDate = now
	p.UpdatedAt = now
	if p.Visits == nil {
		p.Visits = []Visit{}
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info().Str("patient_id", p.ID).Msg("patient registered")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient replaces the demographic fields. Visits and the
// registration date are kept.
func (s *Service) UpdatePatient(ctx context.Context, id string, in *Patient) (*Patient, error) {
	now := s.now().UTC()
	if err := apperr.Fields(in.Validate(now)); err != nil {
		return nil, err
	}
	in.normalize()
	return s.patients.Update(ctx, id, func(p *Patient) error {
		p.FirstName = in.FirstName
		p.LastName = in.LastName
		p.DateOfBirth = in.DateOfBirth
		p.Gender = in.Gender
		p.Phone = in.Phone
		p.Email = in.Email
		p.Address = in.Address
		p.BloodGroup = in.BloodGroup
		p.EmergencyContact = in.EmergencyContact
		p.UpdatedAt = now
		return nil
	})
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, f Filter) ([]*Patient, error) {
	return s.patients.List(ctx, f)
}

// CountByVisitType counts patients with at least one visit of the type.
func (s *Service) CountByVisitType(ctx context.Context, visitType string) (int, error) {
	if visitType != VisitOPD && visitType != VisitIPD {
		return 0, apperr.Invalid("visit type must be OPD or IPD")
	}
	ps, err := s.patients.List(ctx, Filter{VisitType: visitType})
	if err != nil {
		return 0, err
	}
	return len(ps), nil
}

// AddVisit registers an OPD or IPD visit for the patient.
func (s *Service) AddVisit(ctx context.Context, patientID string, v Visit) (*Visit, error) {
	if err := apperr.Fields(v.Validate()); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	v.ID = store.NewID("VIS")
	if v.VisitDate.IsZero() {
		v.VisitDate = now
	}
	if v.Status == "" {
		v.Status = VisitActive
		if v.Type == VisitIPD {
			v.Status = VisitAdmitted
		}
	}
	if _, err := s.patients.Update(ctx, patientID, func(p *Patient) error {
		p.Visits = append(p.Visits, v)
		p.UpdatedAt = now
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", patientID).Str("visit_id", v.ID).Str("type", v.Type).Msg("visit registered")
	return &v, nil
}

func (s *Service) ListVisits(ctx context.Context, patientID string) ([]Visit, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Visits == nil {
		return []Visit{}, nil
	}
	return p.Visits, nil
}

func (s *Service) UpdateVisitStatus(ctx context.Context, patientID, visitID, status string) (*Visit, error) {
	if !validVisitStatuses[status] {
		return nil, apperr.Invalid("invalid visit status: %s", status)
	}
	var out Visit
	_, err := s.patients.Update(ctx, patientID, func(p *Patient) error {
		for i := range p.Visits {
			if p.Visits[i].ID == visitID {
				p.Visits[i].Status = status
				p.UpdatedAt = s.now().UTC()
				out = p.Visits[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrVisitNotFound, visitID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
