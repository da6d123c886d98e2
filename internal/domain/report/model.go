// Package report derives dashboards and revenue series from the ledgers.
// Nothing here is cached: every figure is recomputed from a fresh snapshot.
package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/tpa"
	"github.com/hms/hms/internal/domain/ward"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Snapshot is the input of every derivation.
type Snapshot struct {
	Patients     int
	Appointments []*appointment.Appointment
	Bills        []*billing.Bill
	Occupancy    *ward.Summary
	Claims       []*tpa.Claim
	TakenAt      time.Time
}

type BillingTotals struct {
	Bills       int             `json:"bills"`
	Billed      decimal.Decimal `json:"billed"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Pending     int             `json:"pending"`
	Partial     int             `json:"partial"`
	Paid        int             `json:"paid"`
}

func newBillingTotals() BillingTotals {
	return BillingTotals{Billed: decimal.Zero, Collected: decimal.Zero, Outstanding: decimal.Zero}
}

func (t *BillingTotals) add(b *billing.Bill) {
	t.Bills++
	t.Billed = t.Billed.Add(b.TotalAmount)
	t.Collected = t.Collected.Add(b.AmountPaid)
	t.Outstanding = t.Outstanding.Add(b.Balance())
	switch b.Status {
	case billing.StatusPaid:
		t.Paid++
	case billing.StatusPartial:
		t.Partial++
	default:
		t.Pending++
	}
}

type ClaimTotals struct {
	Total     int              `json:"total"`
	Pending   int              `json:"pending"`
	Approved  int              `json:"approved"`
	Rejected  int              `json:"rejected"`
	Disbursed int              `json:"disbursed"`
	Amounts   tpa.ClaimAmounts `json:"amounts"`
}

type Dashboard struct {
	GeneratedAt       time.Time     `json:"generatedAt"`
	Patients          int           `json:"patients"`
	TodayAppointments int           `json:"todayAppointments"`
	Billing           BillingTotals `json:"billing"`
	ThisMonth         BillingTotals `json:"thisMonth"`
	Occupancy         *ward.Summary `json:"occupancy"`
	Claims            ClaimTotals   `json:"claims"`
}

// BuildDashboard summarises s as of s.TakenAt.
func BuildDashboard(s Snapshot) *Dashboard {
	today := s.TakenAt.Format(dateLayout)
	month := s.TakenAt.Format(monthLayout)

	d := &Dashboard{
		GeneratedAt: s.TakenAt,
		Patients:    s.Patients,
		Billing:     newBillingTotals(),
		ThisMonth:   newBillingTotals(),
		Occupancy:   s.Occupancy,
		Claims:      claimTotals(s.Claims),
	}
	if d.Occupancy == nil {
		d.Occupancy = &ward.Summary{}
	}
	for _, a := range s.Appointments {
		if a.Date == today && a.Status != appointment.StatusCancelled {
			d.TodayAppointments++
		}
	}
	for _, b := range s.Bills {
		d.Billing.add(b)
		if billMonth(b) == month {
			d.ThisMonth.add(b)
		}
	}
	return d
}

func claimTotals(claims []*tpa.Claim) ClaimTotals {
	t := ClaimTotals{Amounts: tpa.ClaimAmounts{
		TotalClaimed: decimal.Zero, TotalApproved: decimal.Zero, TotalDeducted: decimal.Zero,
		TotalPayable: decimal.Zero, TotalDisbursed: decimal.Zero,
	}}
	for _, c := range claims {
		t.Total++
		switch c.Status {
		case tpa.ClaimPending:
			t.Pending++
		case tpa.ClaimApproved:
			t.Approved++
		case tpa.ClaimRejected:
			t.Rejected++
		case tpa.ClaimDisbursed:
			t.Disbursed++
			t.Amounts.TotalDisbursed = t.Amounts.TotalDisbursed.Add(c.PayableAmount)
		}
		t.Amounts.TotalClaimed = t.Amounts.TotalClaimed.Add(c.ClaimAmount)
		t.Amounts.TotalApproved = t.Amounts.TotalApproved.Add(c.ApprovedAmount)
		t.Amounts.TotalDeducted = t.Amounts.TotalDeducted.Add(c.DeductionAmount)
		t.Amounts.TotalPayable = t.Amounts.TotalPayable.Add(c.PayableAmount)
	}
	return t
}

// billDay returns the YYYY-MM-DD a bill is booked on. Bills without a
// usable date fall back to their creation time.
func billDay(b *billing.Bill) string {
	if len(b.Date) >= len(dateLayout) {
		if _, err := time.Parse(dateLayout, b.Date[:len(dateLayout)]); err == nil {
			return b.Date[:len(dateLayout)]
		}
	}
	if b.CreatedAt.IsZero() {
		return ""
	}
	return b.CreatedAt.UTC().Format(dateLayout)
}

func billMonth(b *billing.Bill) string {
	day := billDay(b)
	if day == "" {
		return ""
	}
	return day[:len(monthLayout)]
}

func billYear(b *billing.Bill) string {
	day := billDay(b)
	if day == "" {
		return ""
	}
	return day[:4]
}

// Point is one bucket of a revenue series.
type Point struct {
	Period      string          `json:"period"`
	Bills       int             `json:"bills"`
	Billed      decimal.Decimal `json:"billed"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func seriesBy(bills []*billing.Bill, key func(*billing.Bill) string, periods []string) []Point {
	totals := map[string]*BillingTotals{}
	for _, p := range periods {
		t := newBillingTotals()
		totals[p] = &t
	}
	for _, b := range bills {
		k := key(b)
		if k == "" {
			continue
		}
		t, ok := totals[k]
		if !ok {
			if periods != nil {
				continue
			}
			nt := newBillingTotals()
			t = &nt
			totals[k] = t
		}
		t.add(b)
	}
	if periods == nil {
		for k := range totals {
			periods = append(periods, k)
		}
		sort.Strings(periods)
	}
	out := make([]Point, 0, len(periods))
	for _, p := range periods {
		t := totals[p]
		out = append(out, Point{Period: p, Bills: t.Bills, Billed: t.Billed, Collected: t.Collected, Outstanding: t.Outstanding})
	}
	return out
}

// MonthlySeries returns twelve points for year, one per month, including
// months without bills.
func MonthlySeries(bills []*billing.Bill, year int) []Point {
	periods := make([]string, 12)
	for m := range periods {
		periods[m] = time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC).Format(monthLayout)
	}
	return seriesBy(bills, billMonth, periods)
}

// YearlySeries returns one point per year that has bills, oldest first.
func YearlySeries(bills []*billing.Bill) []Point {
	return seriesBy(bills, billYear, nil)
}

// DailySeries returns one point per day in [from, to].
func DailySeries(bills []*billing.Bill, from, to time.Time) []Point {
	var periods []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		periods = append(periods, d.Format(dateLayout))
	}
	if periods == nil {
		return []Point{}
	}
	return seriesBy(bills, billDay, periods)
}

type SourceRevenue struct {
	Source    string          `json:"source"`
	Bills     int             `json:"bills"`
	Billed    decimal.Decimal `json:"billed"`
	Collected decimal.Decimal `json:"collected"`
}

// BySource groups revenue by the workflow that raised each bill.
func BySource(bills []*billing.Bill) []SourceRevenue {
	points := seriesBy(bills, func(b *billing.Bill) string {
		if b.Source == "" {
			return billing.SourceBilling
		}
		return b.Source
	}, nil)
	out := make([]SourceRevenue, len(points))
	for i, p := range points {
		out[i] = SourceRevenue{Source: p.Period, Bills: p.Bills, Billed: p.Billed, Collected: p.Collected}
	}
	return out
}

type MethodRevenue struct {
	Method   string          `json:"method"`
	Payments int             `json:"payments"`
	Amount   decimal.Decimal `json:"amount"`
}

// ByPaymentMethod totals recorded payments per method. Bills imported
// without a payment history count their paid amount under the bill's method.
func ByPaymentMethod(bills []*billing.Bill) []MethodRevenue {
	totals := map[string]*MethodRevenue{}
	add := func(method string, amount decimal.Decimal) {
		method = strings.ToUpper(strings.TrimSpace(method))
		if method == "" {
			method = "UNSPECIFIED"
		}
		m, ok := totals[method]
		if !ok {
			m = &MethodRevenue{Method: method, Amount: decimal.Zero}
			totals[method] = m
		}
		m.Payments++
		m.Amount = m.Amount.Add(amount)
	}
	for _, b := range bills {
		if len(b.Payments) == 0 {
			if b.AmountPaid.IsPositive() {
				add(b.PaymentMethod, b.AmountPaid)
			}
			continue
		}
		for _, p := range b.Payments {
			add(p.Method, p.Amount)
		}
	}
	out := make([]MethodRevenue, 0, len(totals))
	for _, m := range totals {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

func parseYear(s string, fallback int) (int, bool) {
	if s == "" {
		return fallback, true
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 9999 {
		return 0, false
	}
	return y, true
}
