package invoice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleDoc() Document {
	return Document{
		Hospital:    "City Hospital",
		Number:      "BILL-1",
		Date:        time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		PatientID:   "PAT-1",
		PatientName: "Asha <Rao>",
		BillType:    "IPD",
		Status:      "Partial",
		Lines: []Line{{
			Code: "ROOM-ICU-STAY", Description: "ICU - 2 day(s) @ ₹5000/day", Quantity: 2,
			UnitPrice: decimal.NewFromInt(5000), Amount: decimal.NewFromInt(10000),
		}},
		Total: decimal.NewFromInt(10000),
		Paid:  decimal.NewFromInt(4000),
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(sampleDoc())
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	html := string(out)

	for _, want := range []string{"BILL-1", "05-Mar-2024", "ROOM-ICU-STAY", "₹10000.00", "₹6000.00"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected invoice to contain %q", want)
		}
	}
	if strings.Contains(html, "Asha <Rao>") {
		t.Error("expected patient name to be escaped")
	}
}

func TestDocument_BalanceNeverNegative(t *testing.T) {
	d := Document{Total: decimal.NewFromInt(100), Paid: decimal.NewFromInt(150)}
	if !d.Balance().IsZero() {
		t.Errorf("expected zero balance, got %s", d.Balance())
	}
}

func TestHTMLRenderer(t *testing.T) {
	out, ct, err := HTML{}.Render(context.Background(), sampleDoc())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if ct != ContentTypeHTML {
		t.Errorf("expected %s, got %s", ContentTypeHTML, ct)
	}
	if len(out) == 0 {
		t.Error("expected output")
	}
}
