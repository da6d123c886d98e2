package lab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/store"
)

var (
	ErrNotFound          = fmt.Errorf("lab assignment %w", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: invalid lab status transition", apperr.ErrConflict)
)

type ChargeSink interface {
	OnChargeIncurred(ctx context.Context, ch billing.Charge) (*billing.Bill, error)
}

type Service struct {
	assignments AssignmentRepository
	tx          store.Transactor
	charges     ChargeSink
	catalog     map[TestID]CatalogTest
	catalogList []CatalogTest
	logger      zerolog.Logger
	now         func() time.Time
	events      events.Publisher
}

func NewService(assignments AssignmentRepository, tx store.Transactor, charges ChargeSink, logger zerolog.Logger) *Service {
	s := &Service{
		assignments: assignments,
		tx:          tx,
		charges:     charges,
		logger:      logger.With().Str("component", "lab").Logger(),
		now:         time.Now,
		events:      events.Nop{},
	}
	s.SetCatalog(DefaultCatalog())
	return s
}

func (s *Service) SetPublisher(p events.Publisher) { s.events = p }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetCatalog replaces the test price list.
func (s *Service) SetCatalog(tests []CatalogTest) {
	s.catalogList = tests
	s.catalog = make(map[TestID]CatalogTest, len(tests))
	for _, t := range tests {
		s.catalog[t.ID] = t
	}
}

func (s *Service) ListCatalog() []CatalogTest {
	return s.catalogList
}

// AssignTests records the ordered tests and bills them as one laboratory
// charge. Both are committed together.
func (s *Service) AssignTests(ctx context.Context, req AssignRequest) (*Assignment, error) {
	if req.PatientID == "" {
		return nil, apperr.Invalid("patientId is required")
	}
	if len(req.TestIDs) == 0 {
		return nil, apperr.Invalid("at least one test is required")
	}

	seen := map[TestID]bool{}
	var tests []AssignedTest
	for _, id := range req.TestIDs {
		ct, ok := s.catalog[id]
		if !ok {
			return nil, apperr.Invalid("unknown test: %s", id)
		}
		if seen[id] {
			return nil, apperr.Invalid("test %s listed twice", id)
		}
		seen[id] = true
		tests = append(tests, AssignedTest{ID: ct.ID, Name: ct.Name, Price: ct.Price})
	}

	now := s.now().UTC()
	a := &Assignment{
		ID:          store.NewID("LABASSIGN"),
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		DoctorName:  req.DoctorName,
		Priority:    req.Priority,
		Notes:       req.Notes,
		Tests:       tests,
		Status:      StatusAssigned,
		Results:     []Result{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	items := make([]billing.Item, 0, len(tests))
	for _, t := range tests {
		items = append(items, billing.Item{Code: string(t.ID), Description: t.Name, Quantity: 1, UnitPrice: t.Price})
	}

	ctx, deferred := events.Defer(ctx)
	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		bill, err := s.charges.OnChargeIncurred(ctx, billing.Charge{
			PatientID:   a.PatientID,
			PatientName: a.PatientName,
			BillType:    billing.TypeLab,
			Source:      billing.SourceLaboratory,
			ReferenceID: a.ID,
			Description: "Laboratory tests",
			Items:       items,
		})
		if err != nil {
			return fmt.Errorf("post laboratory charge: %w", err)
		}
		a.BillingID = bill.ID
		return s.assignments.Create(ctx, a)
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}

	out := *a
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("assignment_id", out.ID).Str("bill_id", out.BillingID).
			Int("tests", len(out.Tests)).Msg("lab tests assigned")
		s.publish(ctx, "lab.assigned", &out)
	})
	deferred.Run()
	return a, nil
}

// UpdateStatus moves an assignment forward through the workflow.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Assignment, error) {
	next, ok := statusOrder[status]
	if !ok {
		return nil, apperr.Invalid("invalid status: %s", status)
	}
	a, err := s.assignments.Update(ctx, id, func(a *Assignment) error {
		if cur, ok := statusOrder[a.Status]; ok && next <= cur {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
		}
		s.setStatus(a, status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("assignment_id", a.ID).Str("status", a.Status).Msg("lab status updated")
	s.publish(ctx, "lab.status", a)
	return a, nil
}

// RecordResults stores results once the sample is collected and completes
// the assignment. Results for a completed assignment replace earlier ones.
func (s *Service) RecordResults(ctx context.Context, id string, results []Result) (*Assignment, error) {
	if len(results) == 0 {
		return nil, apperr.Invalid("at least one result is required")
	}
	for i, r := range results {
		if strings.TrimSpace(r.Value) == "" {
			return nil, apperr.Invalid("results[%d].value is required", i)
		}
		if !validFlags[r.Flag] {
			return nil, apperr.Invalid("results[%d].flag is invalid: %s", i, r.Flag)
		}
	}

	a, err := s.assignments.Update(ctx, id, func(a *Assignment) error {
		if statusOrder[a.Status] < statusOrder[StatusSampleCollected] {
			return fmt.Errorf("%w: sample not collected", ErrInvalidTransition)
		}
		assigned := map[TestID]bool{}
		for _, t := range a.Tests {
			assigned[t.ID] = true
		}
		for i, r := range results {
			if !assigned[r.TestID] {
				return apperr.Invalid("results[%d]: test %s is not part of this assignment", i, r.TestID)
			}
		}
		a.Results = results
		s.setStatus(a, StatusCompleted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("assignment_id", a.ID).Int("results", len(a.Results)).Msg("lab results recorded")
	s.publish(ctx, "lab.completed", a)
	return a, nil
}

func (s *Service) setStatus(a *Assignment, status string) {
	now := s.now().UTC()
	if status != a.Status {
		switch status {
		case StatusSampleCollected:
			a.SampleCollectedAt = &now
		case StatusCompleted:
			a.CompletedAt = &now
		}
	}
	a.Status = status
	a.UpdatedAt = now
}

func (s *Service) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	return s.assignments.GetByID(ctx, id)
}

func (s *Service) ListAssignments(ctx context.Context, f Filter) ([]*Assignment, error) {
	return s.assignments.List(ctx, f)
}

// DeleteAssignment removes the assignment. Its bill stays in the ledger.
func (s *Service) DeleteAssignment(ctx context.Context, id string) error {
	return s.assignments.Delete(ctx, id)
}

func (s *Service) publish(ctx context.Context, eventType string, a *Assignment) {
	ev := events.New(events.TopicLab, eventType, "LabAssignment", a.ID, a)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
