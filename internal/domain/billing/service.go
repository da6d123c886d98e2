package billing

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
	"github.com/hms/hms/internal/platform/invoice"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/store"
)

var ErrNotFound = fmt.Errorf("bill %w", apperr.ErrNotFound)

type Service struct {
	bills    BillRepository
	logger   zerolog.Logger
	now      func() time.Time
	events   events.Publisher
	metrics  *metrics.Metrics
	renderer invoice.Renderer
	blobs    blobstore.Store
	hospital string
}

func NewService(bills BillRepository, logger zerolog.Logger) *Service {
	return &Service{
		bills:    bills,
		logger:   logger.With().Str("component", "billing").Logger(),
		now:      time.Now,
		events:   events.Nop{},
		renderer: invoice.HTML{},
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetInvoicing configures invoice rendering. Rendered invoices are kept in
// blobs when it is non-nil.
func (s *Service) SetInvoicing(r invoice.Renderer, blobs blobstore.Store, hospital string) {
	s.renderer = r
	s.blobs = blobs
	s.hospital = hospital
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// GenerateBill posts a manually entered bill.
func (s *Service) GenerateBill(ctx context.Context, b *Bill) (*Bill, error) {
	if strings.TrimSpace(b.PatientName) == "" {
		return nil, apperr.Invalid("patientName is required")
	}
	// Ward and laboratory sources are reserved for OnChargeIncurred.
	b.Source = SourceBilling
	if b.BillType == "" {
		b.BillType = TypeOPD
	}
	return s.create(ctx, b)
}

// OnChargeIncurred is how ward and laboratory workflows post charges. When
// ctx carries a store transaction the bill commits or rolls back with it.
func (s *Service) OnChargeIncurred(ctx context.Context, ch Charge) (*Bill, error) {
	if ch.Source == "" {
		return nil, apperr.Invalid("charge source is required")
	}
	b := &Bill{
		PatientID:   ch.PatientID,
		PatientName: ch.PatientName,
		BillType:    ch.BillType,
		Source:      ch.Source,
		ReferenceID: ch.ReferenceID,
		Description: ch.Description,
		Items:       ch.Items,
	}
	if b.PatientName == "" {
		b.PatientName = b.PatientID
	}
	return s.create(ctx, b)
}

func (s *Service) create(ctx context.Context, b *Bill) (*Bill, error) {
	if !validBillTypes[b.BillType] {
		return nil, apperr.Invalid("invalid billType: %s", b.BillType)
	}
	if !validSources[b.Source] {
		return nil, apperr.Invalid("invalid source: %s", b.Source)
	}
	if len(b.Items) == 0 {
		return nil, apperr.Invalid("at least one item is required")
	}
	for i := range b.Items {
		it := &b.Items[i]
		if strings.TrimSpace(it.Description) == "" {
			return nil, apperr.Invalid("items[%d].description is required", i)
		}
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		if it.Quantity < 0 {
			return nil, apperr.Invalid("items[%d].quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() || it.Amount.IsNegative() {
			return nil, apperr.Invalid("items[%d] must not have a negative price", i)
		}
		it.Amount = it.lineAmount()
	}
	total := Total(b.Items)
	if !total.IsPositive() {
		return nil, apperr.Invalid("bill total must be greater than zero")
	}

	now := s.now().UTC()
	b.ID = store.NewID("BILL")
	b.TotalAmount = total
	b.AmountPaid = decimal.Zero
	b.Payments = nil
	b.Status = StatusPending
	if b.Date == "" {
		b.Date = now.Format("2006-01-02")
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.bills.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}

	bill := *b
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("bill_id", bill.ID).Str("source", bill.Source).
			Str("total", bill.TotalAmount.StringFixed(2)).Msg("bill created")
		s.metrics.BillCreated(bill.Source, bill.TotalAmount.InexactFloat64())
		s.publish(ctx, "bill.created", &bill)
	})
	return b, nil
}

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

// RecordPayment adds amount to what has been paid. Paying more than the
// outstanding balance is accepted.
func (s *Service) RecordPayment(ctx context.Context, id string, in PaymentInput) (*Bill, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Invalid("payment amount must be greater than zero")
	}
	b, err := s.bills.Update(ctx, id, func(b *Bill) error {
		s.applyPayment(b, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.paid(ctx, b, in)
	return b, nil
}

// MarkPaid settles the outstanding balance in one payment, leaving
// amountPaid equal to the total.
func (s *Service) MarkPaid(ctx context.Context, id, method string) (*Bill, error) {
	var in PaymentInput
	b, err := s.bills.Update(ctx, id, func(b *Bill) error {
		in = PaymentInput{Amount: b.Balance(), Method: method}
		if in.Amount.IsPositive() {
			s.applyPayment(b, in)
		} else {
			b.AmountPaid = b.TotalAmount
			b.recompute()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if in.Amount.IsPositive() {
		s.paid(ctx, b, in)
	}
	return b, nil
}

func (s *Service) applyPayment(b *Bill, in PaymentInput) {
	now := s.now().UTC()
	b.Payments = append(b.Payments, Payment{
		ID:        store.NewID("PAY"),
		Amount:    in.Amount,
		Method:    in.Method,
		Reference: in.Reference,
		PaidAt:    now,
	})
	b.AmountPaid = b.AmountPaid.Add(in.Amount)
	if in.Method != "" {
		b.PaymentMethod = in.Method
	}
	b.UpdatedAt = now
	b.recompute()
}

func (s *Service) paid(ctx context.Context, b *Bill, in PaymentInput) {
	bill := *b
	events.OnCommit(ctx, func() {
		s.logger.Info().Str("bill_id", bill.ID).Str("amount", in.Amount.StringFixed(2)).
			Str("status", bill.Status).Msg("payment recorded")
		s.metrics.PaymentRecorded(in.Method, in.Amount.InexactFloat64())
		s.publish(ctx, "bill.payment", &bill)
	})
}

func (s *Service) GetBill(ctx context.Context, id string) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) ListBills(ctx context.Context, f Filter) ([]*Bill, error) {
	return s.bills.List(ctx, f)
}

func (s *Service) DeleteBill(ctx context.Context, id string) error {
	if err := s.bills.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("bill_id", id).Msg("bill deleted")
	return nil
}

// Invoice renders the bill and keeps a copy under invoices/.
func (s *Service) Invoice(ctx context.Context, id string) ([]byte, string, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	out, contentType, err := s.renderer.Render(ctx, invoiceDocument(b, s.hospital))
	if err != nil {
		return nil, "", err
	}
	if s.blobs != nil {
		if _, err := s.blobs.Put(ctx, InvoiceKey(b.ID, contentType), contentType, out); err != nil {
			s.logger.Warn().Err(err).Str("bill_id", b.ID).Msg("failed to store invoice")
		}
	}
	return out, contentType, nil
}

// InvoiceKey is the blob key of a rendered invoice.
func InvoiceKey(billID, contentType string) string {
	ext := ".html"
	if contentType == invoice.ContentTypePDF {
		ext = ".pdf"
	}
	return "invoices/" + billID + ext
}

func invoiceDocument(b *Bill, hospital string) invoice.Document {
	doc := invoice.Document{
		Hospital:    hospital,
		Number:      b.ID,
		Date:        b.CreatedAt,
		PatientID:   b.PatientID,
		PatientName: b.PatientName,
		BillType:    b.BillType,
		Status:      b.Status,
		Total:       b.TotalAmount,
		Paid:        b.AmountPaid,
	}
	for _, it := range b.Items {
		doc.Lines = append(doc.Lines, invoice.Line{
			Code:        it.Code,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		})
	}
	return doc
}

func (s *Service) publish(ctx context.Context, eventType string, b *Bill) {
	ev := events.New(events.TopicBilling, eventType, "Bill", b.ID, b)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
