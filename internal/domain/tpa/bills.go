package tpa

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/store"
)

var billingPeriodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type GenerateBillInput struct {
	TPAID         string   `json:"tpaId"`
	ClaimIDs      []string `json:"claimIds"`
	BillingPeriod string   `json:"billingPeriod"`
}

// GenerateTPABill bills a TPA for the listed claims that belong to it.
// Claims of other TPAs and unknown ids are skipped. The claims' status is
// not checked.
func (s *Service) GenerateTPABill(ctx context.Context, in GenerateBillInput) (*Bill, error) {
	if in.TPAID == "" {
		return nil, apperr.Invalid("tpaId is required")
	}
	if len(in.ClaimIDs) == 0 {
		return nil, apperr.Invalid("at least one claimId is required")
	}
	if in.BillingPeriod == "" {
		in.BillingPeriod = s.now().UTC().Format("2006-01")
	}
	if !billingPeriodPattern.MatchString(in.BillingPeriod) {
		return nil, apperr.Invalid("billingPeriod must be YYYY-MM, got %q", in.BillingPeriod)
	}

	wanted := make(map[string]bool, len(in.ClaimIDs))
	for _, id := range in.ClaimIDs {
		wanted[id] = true
	}

	ctx, deferred := events.Defer(ctx)
	var bill *Bill
	err := s.tx.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.tpas.GetByID(ctx, in.TPAID); err != nil {
			return err
		}
		claims, err := s.claims.List(ctx, ClaimFilter{TPAID: in.TPAID})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		bill = &Bill{
			ID:            store.NewID("TPABILL"),
			TPAID:         in.TPAID,
			ClaimIDs:      []string{},
			BillingPeriod: in.BillingPeriod,
			BillAmount:    decimal.Zero,
			PaidAmount:    decimal.Zero,
			Status:        BillGenerated,
			CreatedDate:   now,
			DueDate:       now.Add(BillDueAfter),
			Details:       []BillDetail{},
		}
		for _, c := range claims {
			if !wanted[c.ID] {
				continue
			}
			bill.ClaimIDs = append(bill.ClaimIDs, c.ID)
			bill.BillAmount = bill.BillAmount.Add(c.PayableAmount)
			bill.Details = append(bill.Details, BillDetail{
				ClaimID:         c.ID,
				ClaimAmount:     c.ClaimAmount,
				ApprovedAmount:  c.ApprovedAmount,
				DeductionAmount: c.DeductionAmount,
				PayableAmount:   c.PayableAmount,
			})
		}
		bill.ClaimsCount = len(bill.ClaimIDs)
		if bill.ClaimsCount == 0 {
			return ErrNoClaims
		}
		if err := s.bills.Create(ctx, bill); err != nil {
			return fmt.Errorf("create tpa bill: %w", err)
		}
		s.billChanged(ctx, "tpa_bill.generated", bill)
		return nil
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}
	deferred.Run()
	return bill, nil
}

// UpdateTPABillPayment sets the absolute amount the TPA has paid.
func (s *Service) UpdateTPABillPayment(ctx context.Context, id string, paid decimal.Decimal) (*Bill, error) {
	if paid.IsNegative() {
		return nil, apperr.Invalid("paidAmount must not be negative")
	}
	ctx, deferred := events.Defer(ctx)
	b, err := s.bills.Update(ctx, id, func(b *Bill) error {
		b.PaidAmount = paid
		b.Status = BillStatusFor(b.BillAmount, paid)
		if paid.IsPositive() {
			now := s.now().UTC()
			b.PaymentDate = &now
		} else {
			b.PaymentDate = nil
		}
		return nil
	})
	if err != nil {
		deferred.Discard()
		return nil, err
	}
	s.billChanged(ctx, "tpa_bill.payment", b)
	deferred.Run()
	return b, nil
}

func (s *Service) GetTPABill(ctx context.Context, id string) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) ListTPABills(ctx context.Context, tpaID string) ([]*Bill, error) {
	return s.bills.List(ctx, tpaID)
}

func (s *Service) billChanged(ctx context.Context, event string, b *Bill) {
	bill := *b
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("tpa_bill_id", bill.ID).Str("tpa_id", bill.TPAID).
			Str("amount", bill.BillAmount.StringFixed(2)).Str("status", bill.Status).Msg(event)
		s.publish(ctx, event, "TPABill", bill.ID, &bill)
	})
}
