package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bill statuses. Status is derived from the paid and total amounts and is
// never set directly.
const (
	StatusPending = "Pending"
	StatusPartial = "Partial"
	StatusPaid    = "Paid"
)

const (
	TypeOPD = "OPD"
	TypeIPD = "IPD"
	TypeLab = "LAB"
)

// Charge sources. Every bill names the workflow that raised it.
const (
	SourceBilling       = "billing"
	SourceWardAdmission = "ward-admission"
	SourceWardDischarge = "ward-discharge"
	SourceLaboratory    = "laboratory"
)

var validBillTypes = map[string]bool{TypeOPD: true, TypeIPD: true, TypeLab: true}

var validSources = map[string]bool{
	SourceBilling: true, SourceWardAdmission: true, SourceWardDischarge: true, SourceLaboratory: true,
}

type Item struct {
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

type Payment struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paidAt"`
}

type Bill struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patientId,omitempty"`
	PatientName   string          `json:"patientName"`
	BillType      string          `json:"billType"`
	Source        string          `json:"source"`
	ReferenceID   string          `json:"referenceId,omitempty"`
	Description   string          `json:"description,omitempty"`
	Items         []Item          `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
	Date          string          `json:"date"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StatusFor derives a bill status from its total and paid amounts.
func StatusFor(total, paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

func (b *Bill) Balance() decimal.Decimal {
	bal := b.TotalAmount.Sub(b.AmountPaid)
	if bal.IsNegative() {
		return decimal.Zero
	}
	return bal
}

func (b *Bill) recompute() {
	b.Status = StatusFor(b.TotalAmount, b.AmountPaid)
}

// Total sums quantity times unit price over items. Items without a unit
// price contribute their amount.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.lineAmount())
	}
	return sum
}

func (it Item) lineAmount() decimal.Decimal {
	if it.UnitPrice.IsZero() {
		return it.Amount
	}
	q := it.Quantity
	if q <= 0 {
		q = 1
	}
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
}

// UnmarshalJSON also reads records written by the older billing screen,
// which used total/amount for the bill total, billItems for the lines,
// type for the bill type and lowercase statuses.
func (b *Bill) UnmarshalJSON(data []byte) error {
	type plain Bill
	var aux struct {
		plain
		Total     *decimal.Decimal `json:"total"`
		Amount    *decimal.Decimal `json:"amount"`
		BillItems []Item           `json:"billItems"`
		Type      string           `json:"type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*b = Bill(aux.plain)

	if len(b.Items) == 0 && len(aux.BillItems) > 0 {
		b.Items = aux.BillItems
	}
	for i := range b.Items {
		it := &b.Items[i]
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if it.UnitPrice.IsZero() && !it.Amount.IsZero() {
			it.UnitPrice = it.Amount.Div(decimal.NewFromInt(int64(it.Quantity)))
		}
		if it.Amount.IsZero() {
			it.Amount = it.lineAmount()
		}
	}
	if b.TotalAmount.IsZero() {
		switch {
		case aux.Total != nil:
			b.TotalAmount = *aux.Total
		case aux.Amount != nil:
			b.TotalAmount = *aux.Amount
		default:
			b.TotalAmount = Total(b.Items)
		}
	}
	if b.BillType == "" {
		b.BillType = strings.ToUpper(aux.Type)
	}
	b.Source = strings.ToLower(b.Source)
	if b.PaymentMethod == "pending" {
		b.PaymentMethod = ""
	}
	b.recompute()
	return nil
}

// Charge is a request from another workflow to post a bill.
type Charge struct {
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	BillType    string `json:"billType"`
	Source      string `json:"source"`
	ReferenceID string `json:"referenceId"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

type Filter struct {
	PatientID string
	Status    string
	Source    string
	BillType  string
}

func (f Filter) match(b Bill) bool {
	if f.PatientID != "" && b.PatientID != f.PatientID {
		return false
	}
	if f.Status != "" && !strings.EqualFold(b.Status, f.Status) {
		return false
	}
	if f.Source != "" && b.Source != f.Source {
		return false
	}
	if f.BillType != "" && b.BillType != f.BillType {
		return false
	}
	return true
}
