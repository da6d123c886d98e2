package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/invoice"
	"github.com/hms/hms/internal/platform/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService() (*Service, store.Store, *recordingPublisher) {
	st := store.NewMemory()
	svc := NewService(NewBillRepoStore(st), zerolog.Nop())
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) })
	return svc, st, pub
}

func consultation() *Bill {
	return &Bill{
		PatientID:   "PAT-1",
		PatientName: "Asha Rao",
		Items:       []Item{{Code: "doc-consultation", Description: "Doctor Consultation", Quantity: 1, UnitPrice: d(500)}},
	}
}

func TestGenerateBill(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	b, err := svc.GenerateBill(ctx, consultation())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if b.Status != StatusPending || !b.AmountPaid.IsZero() {
		t.Errorf("expected new bill Pending with nothing paid, got %s / %s", b.Status, b.AmountPaid)
	}
	if !b.TotalAmount.Equal(d(500)) {
		t.Errorf("expected total 500, got %s", b.TotalAmount)
	}
	if b.Source != SourceBilling || b.BillType != TypeOPD {
		t.Errorf("expected billing/OPD defaults, got %s/%s", b.Source, b.BillType)
	}
	if b.Date != "2024-03-05" {
		t.Errorf("expected date 2024-03-05, got %s", b.Date)
	}
	if got := pub.types(); len(got) != 1 || got[0] != "bill.created" {
		t.Errorf("expected one bill.created event, got %v", got)
	}
}

func TestGenerateBill_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := map[string]*Bill{
		"no patient":     {Items: []Item{{Description: "x", UnitPrice: d(1)}}},
		"no items":       {PatientName: "A"},
		"blank item":     {PatientName: "A", Items: []Item{{UnitPrice: d(1)}}},
		"negative price": {PatientName: "A", Items: []Item{{Description: "x", UnitPrice: d(-1)}}},
		"bad type":       {PatientName: "A", BillType: "DENTAL", Items: []Item{{Description: "x"}}},
		"zero total":     {PatientName: "A", Items: []Item{{Description: "x", Quantity: 2}}},
		"negative line":  {PatientName: "A", Items: []Item{{Description: "x", Amount: d(-50)}}},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.GenerateBill(ctx, b); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerateBill_IgnoresFanInSource(t *testing.T) {
	svc, _, _ := newTestService()
	in := consultation()
	in.Source = SourceLaboratory

	b, err := svc.GenerateBill(context.Background(), in)
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if b.Source != SourceBilling {
		t.Errorf("expected a manual bill to stay %s, got %s", SourceBilling, b.Source)
	}
}

func TestGenerateBill_AmountOnlyItems(t *testing.T) {
	svc, _, _ := newTestService()
	b, err := svc.GenerateBill(context.Background(), &Bill{
		PatientName: "Asha Rao",
		Items: []Item{
			{Description: "X-Ray", Amount: d(800)},
			{Description: "ECG", Quantity: 2, UnitPrice: d(400)},
		},
	})
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if !b.TotalAmount.Equal(d(1600)) {
		t.Errorf("expected total 1600, got %s", b.TotalAmount)
	}
	if !b.Items[0].Amount.Equal(d(800)) {
		t.Errorf("expected the given amount kept, got %s", b.Items[0].Amount)
	}
	if b.Status != StatusPending {
		t.Errorf("expected Pending, got %s", b.Status)
	}
}

func TestRecordPayment_StatusThresholds(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	b, _ := svc.GenerateBill(ctx, consultation())

	b, err := svc.RecordPayment(ctx, b.ID, PaymentInput{Amount: d(200), Method: "cash"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if b.Status != StatusPartial || !b.AmountPaid.Equal(d(200)) {
		t.Errorf("expected Partial with 200 paid, got %s / %s", b.Status, b.AmountPaid)
	}

	b, _ = svc.RecordPayment(ctx, b.ID, PaymentInput{Amount: d(300), Method: "upi"})
	if b.Status != StatusPaid {
		t.Errorf("expected Paid, got %s", b.Status)
	}
	if len(b.Payments) != 2 || b.PaymentMethod != "upi" {
		t.Errorf("expected 2 payments with method upi, got %d / %s", len(b.Payments), b.PaymentMethod)
	}

	// over-payment is accepted and stays Paid
	b, err = svc.RecordPayment(ctx, b.ID, PaymentInput{Amount: d(100)})
	if err != nil {
		t.Fatalf("over-payment: %v", err)
	}
	if b.Status != StatusPaid || !b.AmountPaid.Equal(d(600)) {
		t.Errorf("expected Paid with 600, got %s / %s", b.Status, b.AmountPaid)
	}

	if n := len(pub.types()); n != 4 {
		t.Errorf("expected 4 events, got %d", n)
	}
}

func TestRecordPayment_RejectsNonPositive(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	b, _ := svc.GenerateBill(ctx, consultation())

	for _, amt := range []int64{0, -50} {
		if _, err := svc.RecordPayment(ctx, b.ID, PaymentInput{Amount: d(amt)}); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("amount %d: expected validation error, got %v", amt, err)
		}
	}
}

func TestRecordPayment_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.RecordPayment(context.Background(), "BILL-MISSING", PaymentInput{Amount: d(1)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	b, _ := svc.GenerateBill(ctx, consultation())
	svc.RecordPayment(ctx, b.ID, PaymentInput{Amount: d(120)})

	b, err := svc.MarkPaid(ctx, b.ID, "card")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if b.Status != StatusPaid || !b.AmountPaid.Equal(b.TotalAmount) {
		t.Errorf("expected Paid with amountPaid == total, got %s / %s", b.Status, b.AmountPaid)
	}
	if last := b.Payments[len(b.Payments)-1]; !last.Amount.Equal(d(380)) {
		t.Errorf("expected settling payment of 380, got %s", last.Amount)
	}
}

func TestOnChargeIncurred_JoinsTransaction(t *testing.T) {
	svc, st, pub := newTestService()
	ctx := context.Background()
	boom := errors.New("room update failed")

	dctx, deferred := events.Defer(ctx)
	err := st.Atomic(dctx, func(ctx context.Context) error {
		if _, err := svc.OnChargeIncurred(ctx, Charge{
			PatientID: "PAT-1", PatientName: "Asha", BillType: TypeIPD, Source: SourceWardAdmission,
			Items: []Item{{Code: "ROOM-ICU", Description: "ICU", Quantity: 1, UnitPrice: d(5000)}},
		}); err != nil {
			return err
		}
		return boom
	})
	deferred.Discard()
	if !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	bills, _ := svc.ListBills(ctx, Filter{})
	if len(bills) != 0 {
		t.Errorf("expected charge to roll back, got %d bills", len(bills))
	}
	if len(pub.types()) != 0 {
		t.Errorf("expected no events after rollback, got %v", pub.types())
	}
}

func TestOnChargeIncurred_RequiresSource(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.OnChargeIncurred(context.Background(), Charge{PatientName: "A", BillType: TypeLab, Items: []Item{{Description: "CBC"}}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListBills_Filters(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.GenerateBill(ctx, consultation())
	other := consultation()
	other.PatientID = "PAT-2"
	svc.GenerateBill(ctx, other)
	svc.RecordPayment(ctx, a.ID, PaymentInput{Amount: d(500)})

	paid, _ := svc.ListBills(ctx, Filter{Status: "paid"})
	if len(paid) != 1 || paid[0].ID != a.ID {
		t.Errorf("expected only the paid bill, got %d", len(paid))
	}
	byPatient, _ := svc.ListBills(ctx, Filter{PatientID: "PAT-2"})
	if len(byPatient) != 1 {
		t.Errorf("expected 1 bill for PAT-2, got %d", len(byPatient))
	}
}

func TestDeleteBill(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	b, _ := svc.GenerateBill(ctx, consultation())

	if err := svc.DeleteBill(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBill: %v", err)
	}
	if _, err := svc.GetBill(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteBill(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInvoice_StoresRenderedCopy(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	svc.SetInvoicing(invoice.HTML{}, blobs, "City Hospital")

	b, _ := svc.GenerateBill(ctx, consultation())
	out, ct, err := svc.Invoice(ctx, b.ID)
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	if ct != "text/html" || len(out) == 0 {
		t.Errorf("unexpected invoice %s (%d bytes)", ct, len(out))
	}
	if _, _, err := blobs.Get(ctx, InvoiceKey(b.ID, ct)); err != nil {
		t.Errorf("expected stored invoice: %v", err)
	}
}
