package staff

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrDoctorNotFound = fmt.Errorf("doctor %w", apperr.ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("staff member %w", apperr.ErrNotFound)
)

type Service struct {
	doctors DoctorRepository
	members MemberRepository
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(doctors DoctorRepository, members MemberRepository, logger zerolog.Logger) *Service {
	return &Service{
		doctors: doctors,
		members: members,
		logger:  logger.With().Str("component", "staff").Logger(),
		now:     time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// -- Doctors --

func validateDoctor(d *Doctor) error {
	errs := map[string]string{}
	if strings.TrimSpace(d.Name) == "" {
		errs["name"] = "Name is required"
	}
	if strings.TrimSpace(d.Specialization) == "" {
		errs["specialization"] = "Specialization is required"
	}
	if d.ConsultationFee.IsNegative() {
		errs["consultationFee"] = "Consultation fee must not be negative"
	}
	if d.Experience < 0 {
		errs["experience"] = "Experience must not be negative"
	}
	for _, day := range d.AvailableDays {
		if !weekdays[day] {
			errs["availableDays"] = "Days must be Mon, Tue, Wed, Thu, Fri, Sat or Sun"
		}
	}
	if d.Status != "" && !validStatuses[d.Status] {
		errs["status"] = "Invalid status"
	}
	return apperr.Fields(errs)
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d.ID = ID(store.NewID("DOC"))
	if d.Status == "" {
		d.Status = StatusActive
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	s.logger.Info().Str("doctor_id", string(d.ID)).Msg("doctor added")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]*Doctor, error) {
	return s.doctors.List(ctx, f)
}

func (s *Service) UpdateDoctor(ctx context.Context, id string, in *Doctor) (*Doctor, error) {
	if err := validateDoctor(in); err != nil {
		return nil, err
	}
	return s.doctors.Update(ctx, id, func(d *Doctor) error {
		d.Name = in.Name
		d.Specialization = in.Specialization
		d.Department = in.Department
		d.Email = in.Email
		d.Phone = in.Phone
		d.Qualification = in.Qualification
		d.Experience = in.Experience
		d.ConsultationFee = in.ConsultationFee
		d.AvailableDays = in.AvailableDays
		d.Availability = in.Availability
		if in.Status != "" {
			d.Status = in.Status
		}
		d.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	return s.doctors.Delete(ctx, id)
}

// -- Staff members --

func validateMember(m *Member) error {
	errs := map[string]string{}
	if strings.TrimSpace(m.Name) == "" {
		errs["name"] = "Name is required"
	}
	if !auth.ValidRole(m.Role) {
		errs["role"] = "Role must be one of " + strings.Join(auth.AllRoles(), ", ")
	}
	if strings.TrimSpace(m.Email) == "" {
		errs["email"] = "Email is required"
	}
	if m.JoinDate != "" {
		if _, err := time.Parse("2006-01-02", m.JoinDate); err != nil {
			errs["joinDate"] = "Join date must be YYYY-MM-DD"
		}
	}
	if m.Status != "" && !validStatuses[m.Status] {
		errs["status"] = "Invalid status"
	}
	return apperr.Fields(errs)
}

func (s *Service) CreateMember(ctx context.Context, m *Member) (*Member, error) {
	m.Role = strings.ToUpper(m.Role)
	if err := validateMember(m); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m.ID = store.NewID("STAFF")
	if m.Status == "" {
		m.Status = StatusActive
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := s.members.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create staff member: %w", err)
	}
	s.logger.Info().Str("staff_id", m.ID).Str("role", m.Role).Msg("staff member added")
	return m, nil
}

func (s *Service) GetMember(ctx context.Context, id string) (*Member, error) {
	return s.members.GetByID(ctx, id)
}

func (s *Service) ListMembers(ctx context.Context, f MemberFilter) ([]*Member, error) {
	return s.members.List(ctx, f)
}

func (s *Service) UpdateMember(ctx context.Context, id string, in *Member) (*Member, error) {
	in.Role = strings.ToUpper(in.Role)
	if err := validateMember(in); err != nil {
		return nil, err
	}
	return s.members.Update(ctx, id, func(m *Member) error {
		m.Name = in.Name
		m.Role = in.Role
		m.Email = in.Email
		m.Phone = in.Phone
		m.Department = in.Department
		m.Specialization = in.Specialization
		m.Qualification = in.Qualification
		m.JoinDate = in.JoinDate
		m.License = in.License
		m.Experience = in.Experience
		if in.Status != "" {
			m.Status = in.Status
		}
		m.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) DeleteMember(ctx context.Context, id string) error {
	return s.members.Delete(ctx, id)
}

// Departments lists the distinct departments of doctors and staff.
func (s *Service) Departments(ctx context.Context) ([]string, error) {
	doctors, err := s.doctors.List(ctx, DoctorFilter{})
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, MemberFilter{})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, d := range doctors {
		if d.Department != "" {
			seen[d.Department] = true
		}
	}
	for _, m := range members {
		if m.Department != "" {
			seen[m.Department] = true
		}
	}
	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out, nil
}
