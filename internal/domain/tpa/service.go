package tpa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrTPANotFound       = fmt.Errorf("tpa %w", apperr.ErrNotFound)
	ErrPolicyNotFound    = fmt.Errorf("policy %w", apperr.ErrNotFound)
	ErrClaimNotFound     = fmt.Errorf("claim %w", apperr.ErrNotFound)
	ErrBillNotFound      = fmt.Errorf("tpa bill %w", apperr.ErrNotFound)
	ErrDocumentNotFound  = fmt.Errorf("document %w", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: invalid claim transition", apperr.ErrConflict)
	ErrNoClaims          = fmt.Errorf("%w: no matching claims for this tpa", apperr.ErrInvalid)
)

type Service struct {
	tpas     TPARepository
	policies PolicyRepository
	claims   ClaimRepository
	bills    BillRepository
	tx       store.Transactor
	blobs    blobstore.Store
	logger   zerolog.Logger
	now      func() time.Time
	events   events.Publisher
	metrics  *metrics.Metrics
}

func NewService(tpas TPARepository, policies PolicyRepository, claims ClaimRepository, bills BillRepository, tx store.Transactor, blobs blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		tpas:     tpas,
		policies: policies,
		claims:   claims,
		bills:    bills,
		tx:       tx,
		blobs:    blobs,
		logger:   logger.With().Str("component", "tpa").Logger(),
		now:      time.Now,
		events:   events.Nop{},
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// -- TPAs --

func (s *Service) CreateTPA(ctx context.Context, t *TPA) (*TPA, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if !validTPAStatuses[t.Status] {
		return nil, apperr.Invalid("invalid status: %s", t.Status)
	}
	now := s.now().UTC()
	t.ID = store.NewID("TPA")
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.tpas.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create tpa: %w", err)
	}
	return t, nil
}

func (s *Service) GetTPA(ctx context.Context, id string) (*TPA, error) {
	return s.tpas.GetByID(ctx, id)
}

func (s *Service) ListTPAs(ctx context.Context) ([]*TPA, error) {
	return s.tpas.List(ctx)
}

// UpdateTPA replaces the editable fields of a TPA.
func (s *Service) UpdateTPA(ctx context.Context, id string, in *TPA) (*TPA, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	if in.Status != "" && !validTPAStatuses[in.Status] {
		return nil, apperr.Invalid("invalid status: %s", in.Status)
	}
	return s.tpas.Update(ctx, id, func(t *TPA) error {
		t.Name = in.Name
		t.Code = in.Code
		t.ContactPerson = in.ContactPerson
		t.Phone = in.Phone
		t.Email = in.Email
		t.Address = in.Address
		if in.Status != "" {
			t.Status = in.Status
		}
		t.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) DeleteTPA(ctx context.Context, id string) error {
	return s.tpas.Delete(ctx, id)
}

// -- Policies --

func (s *Service) AddPolicy(ctx context.Context, p *Policy) (*Policy, error) {
	if strings.TrimSpace(p.PolicyNumber) == "" {
		return nil, apperr.Invalid("policyNumber is required")
	}
	if p.PatientID == "" {
		return nil, apperr.Invalid("patientId is required")
	}
	if p.TPAID == "" {
		return nil, apperr.Invalid("tpaId is required")
	}
	if !p.CoverageAmount.IsPositive() {
		return nil, apperr.Invalid("coverageAmount must be greater than zero")
	}
	if p.CopayPercentage.IsNegative() || p.CopayPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperr.Invalid("copayPercentage must be between 0 and 100")
	}
	if p.FixedDeductible.IsNegative() {
		return nil, apperr.Invalid("fixedDeductible must not be negative")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !validPolicyStatuses[p.Status] {
		return nil, apperr.Invalid("invalid status: %s", p.Status)
	}

	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.tpas.GetByID(ctx, p.TPAID); err != nil {
			return err
		}
		now := s.now().UTC()
		p.ID = store.NewID("POL")
		p.PolicyStats = PolicyStats{}
		p.CreatedAt = now
		p.UpdatedAt = now
		return s.policies.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	p.PolicyStats = Stats(p, nil)
	return p, nil
}

// GetPolicy returns the policy with statistics computed from its claims.
func (s *Service) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	claims, err := s.claims.List(ctx, ClaimFilter{PolicyID: id})
	if err != nil {
		return nil, err
	}
	p.PolicyStats = Stats(p, claims)
	return p, nil
}

func (s *Service) ListPolicies(ctx context.Context, f PolicyFilter) ([]*Policy, error) {
	policies, err := s.policies.List(ctx, f)
	if err != nil {
		return nil, err
	}
	claims, err := s.claims.List(ctx, ClaimFilter{TPAID: f.TPAID, PatientID: f.PatientID})
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		p.PolicyStats = Stats(p, claims)
	}
	return policies, nil
}

func (s *Service) UpdatePolicyStatus(ctx context.Context, id, status string) (*Policy, error) {
	if !validPolicyStatuses[status] {
		return nil, apperr.Invalid("invalid status: %s", status)
	}
	if _, err := s.policies.Update(ctx, id, func(p *Policy) error {
		p.Status = status
		p.UpdatedAt = s.now().UTC()
		return nil
	}); err != nil {
		return nil, err
	}
	return s.GetPolicy(ctx, id)
}

func (s *Service) DeletePolicy(ctx context.Context, id string) error {
	return s.policies.Delete(ctx, id)
}

// SuggestDeduction applies the claim's policy terms to its claimed amount.
func (s *Service) SuggestDeduction(ctx context.Context, claimID string) (decimal.Decimal, error) {
	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return decimal.Zero, err
	}
	p, err := s.policies.GetByID(ctx, c.PolicyID)
	if err != nil {
		return decimal.Zero, err
	}
	return CalculateDeduction(c.ClaimAmount, p), nil
}

// Dashboard is recomputed from every claim and bill on each call.
func (s *Service) Dashboard(ctx context.Context, tpaID string) (*Dashboard, error) {
	if _, err := s.tpas.GetByID(ctx, tpaID); err != nil {
		return nil, err
	}
	claims, err := s.claims.List(ctx, ClaimFilter{TPAID: tpaID})
	if err != nil {
		return nil, err
	}
	bills, err := s.bills.List(ctx, tpaID)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(tpaID, claims, bills), nil
}

func (s *Service) publish(ctx context.Context, eventType, entityType, id string, payload any) {
	ev := events.New(events.TopicClaims, eventType, entityType, id, payload)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
